// Package prompts builds the oracle requests issued while constructing a
// taxonomy. There is one constructor per oracle.Kind.
package prompts

import (
	"fmt"
	"strings"

	"github.com/c360studio/taxorank/model"
	"github.com/c360studio/taxorank/oracle"
)

// Generation caps per request kind, in tokens.
const (
	unitsClassify        = 5
	unitsSuperRoot       = 10
	unitsCriteria        = 50
	unitsRedundantLists  = 20
	unitsRootTexts       = 300
	unitsDefineConcept   = 100
	unitsListSubconcepts = 2800
	unitsPostprocessEach = 60
	unitsCheck           = 20
	unitsRedundantItems  = 400
)

// Settings sizes the generated texts.
type Settings struct {
	DescriptionAmount int
	DescriptionWords  int
	DefinitionWords   int
	SubconceptsAmount int
}

// DefaultSettings returns the sizes used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		DescriptionAmount: 5,
		DescriptionWords:  50,
		DefinitionWords:   40,
		SubconceptsAmount: 10,
	}
}

// Builder constructs prompts under fixed Settings.
type Builder struct {
	settings Settings
}

// New creates a Builder. Zero fields in s take their default.
func New(s Settings) *Builder {
	d := DefaultSettings()
	if s.DescriptionAmount <= 0 {
		s.DescriptionAmount = d.DescriptionAmount
	}
	if s.DescriptionWords <= 0 {
		s.DescriptionWords = d.DescriptionWords
	}
	if s.DefinitionWords <= 0 {
		s.DefinitionWords = d.DefinitionWords
	}
	if s.SubconceptsAmount <= 0 {
		s.SubconceptsAmount = d.SubconceptsAmount
	}
	return &Builder{settings: s}
}

// Settings returns the sizes in effect.
func (b *Builder) Settings() Settings {
	return b.settings
}

// Scope locates a concept inside a taxonomy being expanded.
type Scope struct {
	Root    string
	Concept string
	Rank    string
	// Chain renders the dimension's ordered ranks, e.g. "Propulsion > Size".
	Chain string
}

// quote renders items as a quoted, comma-separated list.
func quote(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = "'" + item + "'"
	}
	return strings.Join(quoted, ", ")
}

func expert(subject string) string {
	return fmt.Sprintf("You are a leading ontology expert who specializes in taxonomical classification and knows everything about %q.", subject)
}

// RootCheck asks whether root can head an accepted taxonomy.
func (b *Builder) RootCheck(root string) oracle.Prompt {
	return oracle.Prompt{
		Kind:       oracle.KindRootCheck,
		Capability: model.CapabilityVerify,
		System:     expert(root),
		User: fmt.Sprintf("Can an accepted taxonomical classification be built with %q as its root concept? "+
			"Answer with yes or no only.", root),
		MaxUnits: unitsClassify,
		Verdict:  oracle.ContainsYes,
	}
}

// MemberCheck asks whether concept is an accepted element of some taxonomy.
func (b *Builder) MemberCheck(concept string) oracle.Prompt {
	return oracle.Prompt{
		Kind:       oracle.KindMemberCheck,
		Capability: model.CapabilityVerify,
		System:     expert(concept),
		User: fmt.Sprintf("Is %q commonly understood as an element of some generally accepted taxonomical classification? "+
			"Answer with yes or no only.", concept),
		MaxUnits: unitsClassify,
		Verdict:  oracle.ContainsYes,
	}
}

// SuperRoot asks for the root of a taxonomy that contains concept.
func (b *Builder) SuperRoot(concept string) oracle.Prompt {
	return oracle.Prompt{
		Kind:       oracle.KindSuperRoot,
		Capability: model.CapabilityGenerate,
		System:     expert(concept),
		User: fmt.Sprintf("%q belongs to some accepted taxonomical classification. "+
			"Name the root concept of that classification. It must be a super-concept of %q "+
			"and an accepted taxonomy root on its own. Return only the name.", concept, concept),
		MaxUnits: unitsSuperRoot,
	}
}

// Descriptions asks for semicolon-separated descriptions of the concepts
// named by root.
func (b *Builder) Descriptions(root string) oracle.Prompt {
	n := b.settings.DescriptionAmount
	return oracle.Prompt{
		Kind:       oracle.KindDescriptions,
		Capability: model.CapabilityGenerate,
		System: fmt.Sprintf(`Role: You are an ontologist known for classifying ambiguous concepts.

## Task

Identify the distinct concepts referred to by the term %q and pick the %d most distinctive ones.
Describe each chosen concept so that the description can serve as the root of a taxonomy.
Each description must cover a different side of the term.

## Output

Sort by how commonly each sense is used. No explanations, tags or formatting.
Separate descriptions with semicolons: description; another description; another description`, root, n),
		User: fmt.Sprintf("Give exactly %d different descriptions of the concepts known as %q, each at least %d words long.",
			n, root, b.settings.DescriptionWords),
		MaxUnits: unitsRootTexts,
	}
}

// Definitions asks for semicolon-separated definitions of the concepts named
// by root.
func (b *Builder) Definitions(root string) oracle.Prompt {
	n := b.settings.DescriptionAmount
	return oracle.Prompt{
		Kind:       oracle.KindDefinitions,
		Capability: model.CapabilityGenerate,
		System: fmt.Sprintf(`Role: You are a linguist who studies how the senses of ambiguous words differ.

## Task

Find every concept the term %q can denote and pick the %d most distinctive ones.
Write one precise definition per chosen concept. Each definition must capture the features
needed to classify the concept's subconcepts.

## Output

Sort by how commonly each sense is used. No explanations, tags or formatting.
Separate definitions with semicolons: definition; another definition; another definition`, root, n),
		User: fmt.Sprintf("Give exactly %d different definitions of the concepts denoted by %q, each at least %d words long.",
			n, root, b.settings.DescriptionWords),
		MaxUnits: unitsRootTexts,
	}
}

// Criteria asks for the differentiation criteria of root, conditioned on one
// description or definition.
func (b *Builder) Criteria(root, context string) oracle.Prompt {
	var ctx string
	if context != "" {
		ctx = fmt.Sprintf(" Consider the concept as described here: %s.", context)
	}
	return oracle.Prompt{
		Kind:       oracle.KindCriteria,
		Capability: model.CapabilityGenerate,
		System:     expert(root),
		User: fmt.Sprintf("List the most widely accepted differentiation criteria for classifying %q.%s "+
			"No explanations. Use a comma-separated list: criterion, another criterion, another criterion", root, ctx),
		MaxUnits: unitsCriteria,
	}
}

// RedundantCriteria asks which enumerated criteria lists are redundant. The
// answer lists zero-based IDs, or the lists themselves.
func (b *Builder) RedundantCriteria(root string, candidates []string) oracle.Prompt {
	return oracle.Prompt{
		Kind:       oracle.KindRedundantCriteria,
		Capability: model.CapabilityRegenerate,
		System: fmt.Sprintf(`Role: You are an ontologist reviewing criteria for a new %[1]s taxonomy.

## Task

Several groups proposed lists of differentiation criteria for classifying %[1]s.
Mark every list that is redundant, wrong or does not distinguish kinds of %[1]s.
Lists you do not mark will be used to build the taxonomy.`, root),
		User: fmt.Sprintf("The candidate lists are:\n%s\nReturn the IDs (counting from 0) of the redundant lists, comma-separated: ID, another ID, another ID",
			oracle.Enumerate(candidates)),
		MaxUnits: unitsRedundantLists,
	}
}

// Ranks asks for an ordered rank list for root under one criterion.
func (b *Builder) Ranks(root, criterion string) oracle.Prompt {
	return oracle.Prompt{
		Kind:       oracle.KindRanks,
		Capability: model.CapabilityGenerate,
		System:     fmt.Sprintf("You are an ontology expert who has spent years on why %q resists simple classification.", root),
		User: fmt.Sprintf("%q is the root of a taxonomy. Using the differentiation criteria %s, give the ordered taxonomical ranks "+
			"(hierarchy levels) that classify every subconcept of %q. No explanations. "+
			"Use a comma-separated list: rank, next rank, next rank", root, criterion, root),
		MaxUnits: unitsCriteria,
	}
}

// OptimizeRanks asks the oracle to merge candidate rank lists into
// independent, semicolon-separated dimensions.
func (b *Builder) OptimizeRanks(root string, lists []string) oracle.Prompt {
	return oracle.Prompt{
		Kind:       oracle.KindOptimizeRanks,
		Capability: model.CapabilityGenerate,
		System: fmt.Sprintf(`Role: You are a taxonomy specialist.

## Task

Several experts proposed rank lists for classifying %[1]q. Fix their mistakes, drop ranks that do not fit,
add missing ones and merge lists where needed.

## Candidates

%[2]s
## Constraints

- Lists are separated by semicolons, ranks inside a list by commas
- A rank appears in one list only and no list holds synonymous ranks
- Every list is ordered for iterative classification of the subconcepts of %[1]q
- No explanations`, root, oracle.Enumerate(lists)),
		User:     fmt.Sprintf("Return the refined rank lists of %q: rank, rank; rank, rank; rank", root),
		MaxUnits: unitsCriteria,
	}
}

// DefineConcept asks for a definition of s.Concept at s.Rank.
func (b *Builder) DefineConcept(s Scope) oracle.Prompt {
	return oracle.Prompt{
		Kind:       oracle.KindDefineConcept,
		Capability: model.CapabilityGenerate,
		System: fmt.Sprintf("You are an ontology expert focused on classifying %q. "+
			"The taxonomy is at the %q level of the hierarchy (%s).", s.Root, s.Rank, s.Chain),
		User: fmt.Sprintf("Define %q for the %q level of this taxonomy in about %d words.",
			s.Concept, s.Rank, b.settings.DefinitionWords),
		MaxUnits: unitsDefineConcept,
	}
}

// ListSubconcepts asks for the subconcepts of s.Concept at s.Rank.
func (b *Builder) ListSubconcepts(s Scope, definition string) oracle.Prompt {
	return oracle.Prompt{
		Kind:       oracle.KindListSubconcepts,
		Capability: model.CapabilityGenerate,
		System: fmt.Sprintf(`Role: You are a taxonomical classification expert with complete knowledge of %[1]q.

## Task

Find the subconcepts of the current concept that belong to the %[2]q rank and pick the %[3]d most
distinctive and accurate ones.

## Context

Root concept: %[1]s
Hierarchy: %[4]s
Current concept: %[5]s
Definition: %[6]s`, s.Root, s.Rank, b.settings.SubconceptsAmount, s.Chain, s.Concept, definition),
		User: fmt.Sprintf("List the most important subconcepts of %q by %q. Include only concepts exactly one level below %q "+
			"and no instances of it. No explanations. Use a comma-separated list: subconcept, another subconcept, another subconcept",
			s.Concept, s.Rank, s.Concept),
		MaxUnits: unitsListSubconcepts,
	}
}

// PostprocessSubconcepts asks the oracle to turn raw candidate terms into
// standalone subconcept names.
func (b *Builder) PostprocessSubconcepts(s Scope, candidates []string) oracle.Prompt {
	return oracle.Prompt{
		Kind:       oracle.KindPostprocessSubconcepts,
		Capability: model.CapabilityGenerate,
		System: `Role: You are a taxonomical classification assistant.

## Task

Combine the root concept, the rank and each candidate into a standalone subconcept name.
No explanations. Use a comma-separated list.

## Examples

root concept: 'Software', rank: 'User Interface Type', candidates: 'GUI', 'CLI'
Graphical User Interface Software, Command-Line Interface Software

root concept: 'Wound', rank: 'Location', candidates: 'Hands', 'Knees'
Wounded Hand, Wounded Knee`,
		User: fmt.Sprintf("root concept: '%s', rank: '%s', candidates: %s",
			s.Root, s.Rank, quote(candidates)),
		MaxUnits: max(unitsPostprocessEach, unitsPostprocessEach*len(candidates)),
	}
}

// CheckSubconcepts asks a binary validator whether every item is a proper
// subconcept of s.Root. A valid list is answered with exactly "+".
func (b *Builder) CheckSubconcepts(s Scope, items []string) oracle.Prompt {
	return oracle.Prompt{
		Kind:       oracle.KindCheckSubconcepts,
		Capability: model.CapabilityVerify,
		System: "You check taxonomies and may answer only + or -. " +
			"Answer - when the check fails and + when it passes.",
		User: fmt.Sprintf("Are all of [%s] acceptable subconcepts of %s? "+
			"%s need not appear in them. Answer + if all are acceptable, otherwise -.",
			strings.Join(items, ", "), s.Root, s.Root),
		MaxUnits: unitsCheck,
		Verdict:  oracle.ExactPlus,
	}
}

// RedundantSubconcepts asks which candidates should be discarded at s.Rank.
func (b *Builder) RedundantSubconcepts(s Scope, candidates []string) oracle.Prompt {
	return oracle.Prompt{
		Kind:       oracle.KindRedundantSubconcepts,
		Capability: model.CapabilityRegenerate,
		System: fmt.Sprintf(`Role: You are an ontologist reviewing candidates for a new %[1]s taxonomy.

## Task

Inspect every candidate and list those that are redundant or wrong. A candidate is redundant if it is
not a kind of %[1]s or does not fit the %[2]q level of the hierarchy (%[3]s).
Discard only what is needless. If nothing is redundant, answer None.`, s.Root, s.Rank, s.Chain),
		User: fmt.Sprintf("The candidates are %q. List the redundant ones, comma-separated: redundant, another redundant",
			strings.Join(candidates, ", ")),
		MaxUnits: unitsRedundantItems,
	}
}
