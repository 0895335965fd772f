package llm

import (
	"fmt"
	"strings"

	"github.com/dshills/researchpipe-go/pipeline/research"
)

// fallbackTemplates supply domain-appropriate prose when every generation
// attempt is exhausted. Callers receive the template instead of an error and
// a Fallback flag in the result metadata.
var fallbackTemplates = map[research.Domain]string{
	research.DomainCybersecurity: "Research in this area of information security examines defensive architectures, threat modeling, and the systematic evaluation of system robustness. The literature emphasizes rigorous methodology, responsible disclosure, and reproducible measurement of security properties.",
	research.DomainMedical:       "Clinical research in this area follows established protocols for evidence gathering, from observational studies through randomized controlled trials. The literature emphasizes patient outcomes, methodological rigor, and the translation of findings into practice guidelines.",
	research.DomainAIML:          "Work in this area of machine learning studies model architectures, training dynamics, and empirical evaluation across standard benchmarks. The literature emphasizes reproducibility, ablation analysis, and careful characterization of model behavior and limitations.",
	research.DomainChemistry:     "Research in this area of chemistry investigates molecular structure, reaction mechanisms, and materials characterization. The literature emphasizes controlled experimentation, spectroscopic validation, and reproducible synthesis procedures.",
	research.DomainBiology:       "Research in this area of biology examines cellular and molecular mechanisms, organismal function, and ecological interactions. The literature emphasizes controlled experimental design, statistical rigor, and reproducibility across model systems.",
	research.DomainPhysics:       "Research in this area of physics develops theoretical models and experimental measurements of physical phenomena. The literature emphasizes mathematical formalism, precision measurement, and the interplay between theory and experiment.",
	research.DomainComputerScience: "Research in this area of computer science studies algorithms, systems, and formal methods. The literature emphasizes asymptotic analysis, empirical benchmarking, and correctness arguments for proposed techniques.",
	research.DomainEngineering:   "Research in this area of engineering addresses design methodology, system optimization, and performance validation. The literature emphasizes quantitative evaluation, safety margins, and practical deployment considerations.",
	research.DomainPsychology:    "Research in this area of psychology investigates cognition, behavior, and their underlying mechanisms. The literature emphasizes validated instruments, replication, and careful treatment of confounding variables.",
	research.DomainEconomics:     "Research in this area of economics models markets, incentives, and policy outcomes. The literature emphasizes identification strategies, robustness checks, and the external validity of empirical findings.",
	research.DomainGeneric:       "Research in this area draws on established methods from the relevant literature. Published work emphasizes systematic methodology, reproducible results, and careful discussion of scope and limitations.",
}

// FallbackText returns the domain fallback paragraph, optionally referencing
// the subject under discussion.
func FallbackText(domain research.Domain, subject string) string {
	tmpl, ok := fallbackTemplates[domain]
	if !ok {
		tmpl = fallbackTemplates[research.DomainGeneric]
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return tmpl
	}
	return fmt.Sprintf("This section addresses %s. %s", subject, tmpl)
}

// IsFallbackText reports whether text is one of the package fallback
// templates. Used by draft validation when substituting unsafe output.
func IsFallbackText(text string) bool {
	for _, tmpl := range fallbackTemplates {
		if strings.Contains(text, tmpl) {
			return true
		}
	}
	return false
}
