package research

import (
	"sort"
	"strings"
)

// Domain tags a research area. Domains select the safety replacement table
// applied to prompts and the fallback prose used when generation fails.
type Domain string

// Recognized research domains.
const (
	DomainCybersecurity   Domain = "cybersecurity"
	DomainMedical         Domain = "medical"
	DomainAIML            Domain = "ai_ml"
	DomainChemistry       Domain = "chemistry"
	DomainBiology         Domain = "biology"
	DomainPhysics         Domain = "physics"
	DomainComputerScience Domain = "computer_science"
	DomainEngineering     Domain = "engineering"
	DomainPsychology      Domain = "psychology"
	DomainEconomics       Domain = "economics"
	DomainGeneric         Domain = "generic"
)

// domainKeywords scores candidate text against each domain.
// Matching is whole-word over lowercased text.
var domainKeywords = map[Domain][]string{
	DomainCybersecurity: {
		"security", "vulnerability", "malware", "encryption", "firewall",
		"intrusion", "exploit", "phishing", "ransomware", "cryptography",
		"authentication", "adversarial",
	},
	DomainMedical: {
		"clinical", "patient", "disease", "treatment", "diagnosis", "therapy",
		"medicine", "drug", "cancer", "health", "surgical", "epidemiology",
	},
	DomainAIML: {
		"neural", "learning", "network", "model", "training", "transformer",
		"classification", "deep", "reinforcement", "embedding", "gradient",
		"attention", "dataset",
	},
	DomainChemistry: {
		"chemical", "molecule", "reaction", "compound", "synthesis",
		"catalyst", "polymer", "organic", "spectroscopy",
	},
	DomainBiology: {
		"gene", "protein", "cell", "organism", "evolution", "genome",
		"species", "enzyme", "microbiome", "ecology",
	},
	DomainPhysics: {
		"quantum", "particle", "relativity", "photon", "gravitational",
		"thermodynamic", "cosmology", "plasma", "superconductor",
	},
	DomainComputerScience: {
		"algorithm", "complexity", "database", "compiler", "distributed",
		"concurrency", "graph", "protocol", "computation",
	},
	DomainEngineering: {
		"design", "manufacturing", "structural", "mechanical", "robotics",
		"control", "materials", "aerospace", "circuit",
	},
	DomainPsychology: {
		"cognitive", "behavior", "perception", "memory", "emotion",
		"personality", "social", "developmental", "mental",
	},
	DomainEconomics: {
		"market", "economic", "policy", "inflation", "trade", "fiscal",
		"monetary", "labor", "investment", "growth",
	},
}

// DetectDomain scores the given texts against each domain's keyword list and
// returns the highest-scoring domain. Ties break to the first domain in
// alphabetical order; empty or unmatched input yields DomainGeneric.
//
// Detection is deterministic and side-effect free.
func DetectDomain(texts ...string) Domain {
	words := make(map[string]int)
	for _, t := range texts {
		for _, w := range strings.Fields(strings.ToLower(t)) {
			words[strings.Trim(w, ".,;:!?()[]\"'")]++
		}
	}
	if len(words) == 0 {
		return DomainGeneric
	}

	domains := make([]Domain, 0, len(domainKeywords))
	for d := range domainKeywords {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })

	best := DomainGeneric
	bestScore := 0
	for _, d := range domains {
		score := 0
		for _, kw := range domainKeywords[d] {
			score += words[kw]
		}
		if score > bestScore {
			best = d
			bestScore = score
		}
	}
	return best
}

// ValidDomain reports whether d is a recognized domain tag.
func ValidDomain(d Domain) bool {
	if d == DomainGeneric {
		return true
	}
	_, ok := domainKeywords[d]
	return ok
}
