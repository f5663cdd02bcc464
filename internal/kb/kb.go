// Package kb loads the knowledge base: the per-subject configuration that
// binds evidence capabilities to provider instances and carries known failure
// modes, runbooks, and dependencies used during investigation.
package kb

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// KnowledgeBase is the parsed knowledge base file.
//
// Example YAML structure:
//
//	subjects:
//	  - name: checkout
//	    environment: prod
//	    bindings:
//	      log_store: loki-prod
//	      deploy_tracker: gha-deploys
//	    known_failure_modes:
//	      - name: connection pool exhaustion
//	        indicators: ["pool exhausted", "too many connections"]
//	    runbooks:
//	      - title: Checkout runbook
//	        url: https://wiki.internal/checkout
//	    dependencies: [payments, inventory]
//	providers:
//	  - id: loki-prod
//	    category: log_store
//	    type: loki
//	    config:
//	      base_url: "http://loki:3100"
type KnowledgeBase struct {
	Subjects  []Subject          `koanf:"subjects"`
	Providers []ProviderInstance `koanf:"providers"`
}

// Subject is one investigable service/component in one environment.
type Subject struct {
	Name              string            `koanf:"name"`
	Environment       string            `koanf:"environment"`
	Bindings          map[string]string `koanf:"bindings"`
	KnownFailureModes []FailureMode     `koanf:"known_failure_modes"`
	Runbooks          []Runbook         `koanf:"runbooks"`
	Dependencies      []string          `koanf:"dependencies"`
	LogEvidence       LogHints          `koanf:"log_evidence"`
}

// FailureMode names a known way the subject breaks, with indicator phrases
// that the scoring engine matches against hypothesis statements.
type FailureMode struct {
	Name       string   `koanf:"name"`
	Indicators []string `koanf:"indicators"`
}

// Runbook points at an operational document for the subject.
type Runbook struct {
	Title string `koanf:"title"`
	URL   string `koanf:"url"`
}

// LogHints carries log-parsing configuration passed through to the log store
// provider: stream selectors and field extraction paths.
type LogHints struct {
	StreamSelectors map[string]string `koanf:"stream_selectors"`
	Parse           map[string]any    `koanf:"parse"`
}

// ProviderInstance describes one concrete provider configuration, referenced
// from subject bindings by id.
type ProviderInstance struct {
	ID       string         `koanf:"id"`
	Category string         `koanf:"category"`
	Type     string         `koanf:"type"`
	Config   map[string]any `koanf:"config"`
}

// Load reads and parses the knowledge base YAML file.
func Load(path string) (*KnowledgeBase, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load knowledge base from %q: %w", path, err)
	}

	var kb KnowledgeBase
	if err := k.UnmarshalWithConf("", &kb, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base from %q: %w", path, err)
	}

	for i, p := range kb.Providers {
		if p.ID == "" {
			return nil, NewMalformedSliceError("provider[%d] is missing an id", i)
		}
	}

	return &kb, nil
}

// Slice resolves the configuration slice for one subject in one environment.
// The returned slice is read-only for the remainder of the investigation run.
//
// Fails with SubjectNotFoundError when no subject matches, and with
// MalformedSliceError when the matched subject has no capability bindings.
func (kb *KnowledgeBase) Slice(subject, environment string) (*Slice, error) {
	var match *Subject
	for i := range kb.Subjects {
		s := &kb.Subjects[i]
		if s.Name != subject {
			continue
		}
		if s.Environment != "" && environment != "" && s.Environment != environment {
			continue
		}
		match = s
		break
	}
	if match == nil {
		return nil, NewSubjectNotFoundError(subject, environment)
	}
	if len(match.Bindings) == 0 {
		return nil, NewMalformedSliceError("subject %q is missing capability bindings", subject)
	}

	providers := make(map[string]ProviderInstance, len(kb.Providers))
	for _, p := range kb.Providers {
		providers[p.ID] = p
	}

	return &Slice{Subject: *match, Providers: providers}, nil
}

// Slice is the resolved per-subject view of the knowledge base, loaded once
// per run.
type Slice struct {
	Subject   Subject
	Providers map[string]ProviderInstance
}

// Binding returns the provider instance id bound to the given capability
// name, or "" if the capability is not bound for this subject.
func (s *Slice) Binding(capability string) string {
	return s.Subject.Bindings[capability]
}

// Excerpt is the reasoning-facing projection of the slice: just the knowledge
// the model should see, none of the provider plumbing.
type Excerpt struct {
	KnownFailureModes []FailureMode `yaml:"known_failure_modes,omitempty" json:"known_failure_modes,omitempty"`
	Runbooks          []Runbook     `yaml:"runbooks,omitempty" json:"runbooks,omitempty"`
	Dependencies      []string      `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
}

// Excerpt builds the reasoning-facing projection of the slice.
func (s *Slice) Excerpt() Excerpt {
	return Excerpt{
		KnownFailureModes: s.Subject.KnownFailureModes,
		Runbooks:          s.Subject.Runbooks,
		Dependencies:      s.Subject.Dependencies,
	}
}
