package mapper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fhirgraph/fhirgraph/engine/graph"
)

// Reference is the FHIR Reference datatype. At least one of Reference,
// Identifier and Display must be present.
type Reference struct {
	Reference  string         `json:"reference"`
	Type       string         `json:"type"`
	Identifier *refIdentifier `json:"identifier"`
	Display    string         `json:"display"`
}

type refIdentifier struct {
	System string `json:"system"`
	Value  string `json:"value"`
}

// refPattern matches "Type/id", an absolute URL ending in ".../Type/id", and
// either with a trailing "/_history/v".
var refPattern = regexp.MustCompile(
	`^(?:(?:http|https)://(?:[A-Za-z0-9\-\\.:%$]*/)+)?([A-Za-z]+)/([A-Za-z0-9\-.]{1,64})(?:/_history/[A-Za-z0-9\-.]{1,64})?$`)

// Classified is the outcome of reference classification. Target is nil for a
// display-only reference; Display carries the description text when present.
type Classified struct {
	Target  graph.Target
	Display string
}

// ClassifyReference sorts a reference into literal, logical or display-only.
// allowed is the element's declared target type set: with exactly one entry
// it is taken as the target type; with several, the reference must identify
// one of them or classification fails.
func ClassifyReference(ref Reference, allowed ...string) (Classified, error) {
	if ref.Reference == "" && ref.Identifier == nil && ref.Display == "" {
		return Classified{}, fmt.Errorf("reference has none of reference, identifier, display")
	}

	out := Classified{Display: ref.Display}

	if ref.Reference != "" {
		m := refPattern.FindStringSubmatch(ref.Reference)
		if m == nil || !isResourceType(m[1]) {
			return Classified{}, fmt.Errorf("unparseable reference %q", ref.Reference)
		}
		typ, id := m[1], m[2]
		if len(allowed) == 1 {
			// The element declares exactly one target type; trust it.
			typ = allowed[0]
		} else if len(allowed) > 1 && !containsType(allowed, typ) {
			return Classified{}, fmt.Errorf("referenced type %s not among %s", typ, strings.Join(allowed, ", "))
		}
		out.Target = graph.LiteralTarget{Type: typ, ID: id}
		return out, nil
	}

	if ref.Identifier != nil {
		if ref.Identifier.System == "" || ref.Identifier.Value == "" {
			return Classified{}, fmt.Errorf("logical reference missing identifier system or value")
		}
		typ, err := logicalType(ref, allowed)
		if err != nil {
			return Classified{}, err
		}
		out.Target = graph.LogicalTarget{
			Type:   typ,
			System: ref.Identifier.System,
			Value:  ref.Identifier.Value,
		}
		return out, nil
	}

	// Display only: no edge, the caller stores the text on the source node.
	return out, nil
}

// logicalType determines the target type of a logical reference from the
// declared set and the optional Reference.type element.
func logicalType(ref Reference, allowed []string) (string, error) {
	if len(allowed) == 1 {
		return allowed[0], nil
	}
	if ref.Type == "" {
		return "", fmt.Errorf("cannot determine logical reference target type")
	}
	if !isResourceType(ref.Type) {
		return "", fmt.Errorf("unknown reference type %q", ref.Type)
	}
	if len(allowed) > 1 && !containsType(allowed, ref.Type) {
		return "", fmt.Errorf("referenced type %s not among %s", ref.Type, strings.Join(allowed, ", "))
	}
	return ref.Type, nil
}

func containsType(list []string, t string) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}

func isResourceType(t string) bool {
	_, ok := resourceTypes[t]
	return ok
}

// resourceTypes is the FHIR R4 resource type set a reference URL may name.
var resourceTypes = func() map[string]struct{} {
	names := []string{
		"Account", "ActivityDefinition", "AdministrableProductDefinition",
		"AdverseEvent", "AllergyIntolerance", "Appointment",
		"AppointmentResponse", "AuditEvent", "Basic", "Binary",
		"BiologicallyDerivedProduct", "BodyStructure", "Bundle",
		"CapabilityStatement", "CarePlan", "CareTeam", "CatalogEntry",
		"ChargeItem", "ChargeItemDefinition", "Citation", "Claim",
		"ClaimResponse", "ClinicalImpression", "ClinicalUseDefinition",
		"CodeSystem", "Communication", "CommunicationRequest",
		"CompartmentDefinition", "Composition", "ConceptMap", "Condition",
		"Consent", "Contract", "Coverage", "CoverageEligibilityRequest",
		"CoverageEligibilityResponse", "DetectedIssue", "Device",
		"DeviceDefinition", "DeviceMetric", "DeviceRequest",
		"DeviceUseStatement", "DiagnosticReport", "DocumentManifest",
		"DocumentReference", "Encounter", "Endpoint", "EnrollmentRequest",
		"EnrollmentResponse", "EpisodeOfCare", "EventDefinition", "Evidence",
		"EvidenceReport", "EvidenceVariable", "ExampleScenario",
		"ExplanationOfBenefit", "FamilyMemberHistory", "Flag", "Goal",
		"GraphDefinition", "Group", "GuidanceResponse", "HealthcareService",
		"ImagingStudy", "Immunization", "ImmunizationEvaluation",
		"ImmunizationRecommendation", "ImplementationGuide", "Ingredient",
		"InsurancePlan", "Invoice", "Library", "Linkage", "List", "Location",
		"ManufacturedItemDefinition", "Measure", "MeasureReport", "Media",
		"Medication", "MedicationAdministration", "MedicationDispense",
		"MedicationKnowledge", "MedicationRequest", "MedicationStatement",
		"MedicinalProductDefinition", "MessageDefinition", "MessageHeader",
		"MolecularSequence", "NamingSystem", "NutritionOrder",
		"NutritionProduct", "Observation", "ObservationDefinition",
		"OperationDefinition", "OperationOutcome", "Organization",
		"OrganizationAffiliation", "PackagedProductDefinition", "Patient",
		"PaymentNotice", "PaymentReconciliation", "Person", "PlanDefinition",
		"Practitioner", "PractitionerRole", "Procedure", "Provenance",
		"Questionnaire", "QuestionnaireResponse", "RegulatedAuthorization",
		"RelatedPerson", "RequestGroup", "ResearchDefinition",
		"ResearchElementDefinition", "ResearchStudy", "ResearchSubject",
		"RiskAssessment", "Schedule", "SearchParameter", "ServiceRequest",
		"Slot", "Specimen", "SpecimenDefinition", "StructureDefinition",
		"StructureMap", "Subscription", "SubscriptionStatus",
		"SubscriptionTopic", "Substance", "SubstanceDefinition",
		"SupplyDelivery", "SupplyRequest", "Task", "TerminologyCapabilities",
		"TestReport", "TestScript", "ValueSet", "VerificationResult",
		"VisionPrescription",
	}
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}()
