package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const systemPrompt = `You are an SRE assistant investigating a production incident.
You answer with a single JSON document and nothing else: no prose, no markdown
fences, no explanation. You never invent evidence ids; you only reference ids
that appear in the evidence you were given.`

// buildPlannerPrompt renders the planning task for one iteration.
func buildPlannerPrompt(req PlanRequest) (string, error) {
	var b strings.Builder

	b.WriteString("Plan the next evidence-collection actions for this incident.\n\n")
	writeIncident(&b, req)

	b.WriteString("Available capabilities (use only these):\n")
	for _, c := range req.Available {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	b.WriteString("\n")

	if len(req.MissingKinds) > 0 {
		b.WriteString("Evidence kinds still missing: ")
		kinds := make([]string, 0, len(req.MissingKinds))
		for _, k := range req.MissingKinds {
			kinds = append(kinds, string(k))
		}
		b.WriteString(strings.Join(kinds, ", "))
		b.WriteString("\n\n")
	}

	if err := writeEvidence(&b, req.Evidence); err != nil {
		return "", err
	}

	b.WriteString(`Respond with JSON of the form:
{"actions": [{"capability": "<capability>", "arguments": {}}]}
Propose at most 8 actions. Prefer capabilities whose evidence kind is still missing.`)
	return b.String(), nil
}

// buildHypothesisPrompt renders the hypothesis task for one iteration.
func buildHypothesisPrompt(req HypothesisRequest) (string, error) {
	var b strings.Builder

	b.WriteString("Propose root-cause hypotheses for this incident based on the evidence.\n\n")
	writeIncident(&b, PlanRequest{Incident: req.Incident, Excerpt: req.Excerpt, Iteration: req.Iteration})

	if err := writeEvidence(&b, req.Evidence); err != nil {
		return "", err
	}

	b.WriteString(`Respond with JSON of the form:
{"hypotheses": [{"statement": "...", "supporting_evidence_ids": ["..."], "contradictions": ["..."], "validations": ["..."]}]}
Propose at most 5 hypotheses, most plausible first. Statements must be concrete
and falsifiable. Validations are commands or checks an operator can run.
Do not assign confidence values; they are computed elsewhere.`)
	return b.String(), nil
}

func writeIncident(b *strings.Builder, req PlanRequest) {
	fmt.Fprintf(b, "Incident:\n  subject: %s\n  environment: %s\n  severity: %s\n  window: %s .. %s\n  title: %s\n",
		req.Incident.Subject,
		req.Incident.Environment,
		req.Incident.Severity,
		req.Incident.TimeRange.Start.Format(time.RFC3339),
		req.Incident.TimeRange.End.Format(time.RFC3339),
		req.Incident.Title,
	)
	fmt.Fprintf(b, "  iteration: %d\n\n", req.Iteration)

	if excerpt := renderExcerpt(req); excerpt != "" {
		b.WriteString("Knowledge base excerpt:\n")
		b.WriteString(excerpt)
		b.WriteString("\n")
	}
}

// renderExcerpt serializes the KB excerpt as YAML. YAML reads better in a
// prompt than JSON and the excerpt is small.
func renderExcerpt(req PlanRequest) string {
	if len(req.Excerpt.KnownFailureModes) == 0 &&
		len(req.Excerpt.Runbooks) == 0 &&
		len(req.Excerpt.Dependencies) == 0 {
		return ""
	}
	raw, err := yaml.Marshal(req.Excerpt)
	if err != nil {
		return ""
	}
	return string(raw)
}

func writeEvidence(b *strings.Builder, evidence []CompactEvidence) error {
	if len(evidence) == 0 {
		b.WriteString("No evidence collected yet.\n\n")
		return nil
	}

	raw, err := json.MarshalIndent(evidence, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode evidence for prompt: %w", err)
	}
	b.WriteString("Evidence collected so far:\n")
	b.Write(raw)
	b.WriteString("\n\n")
	return nil
}
