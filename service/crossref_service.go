package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/douggil74/elite-recovery-app-sub004/models"
	"github.com/douggil74/elite-recovery-app-sub004/repository"

	"github.com/google/uuid"
)

// Scoring constants. The formula is deterministic and explainable:
// every point traces to a reason string on the merged entity.
const (
	recencyMultiplier       = 1.25
	activePhoneBoost        = 8
	vehicleLinkBoost        = 8
	familyAddressBoost      = 10
	highConfidenceThreshold = 60
	topNResults             = 4
	maxScore                = 100
)

// sourceIncrements holds the diminishing score contribution of each
// additional independent source document. Sources beyond the table add
// nothing, so the score is monotonic non-decreasing in source count.
var sourceIncrements = []int{35, 14, 9, 6, 4}

// CrossRefService merges raw candidate facts from all of a case's fact
// sets into deduplicated, confidence-scored entities.
type CrossRefService struct {
	factSetRepo  *repository.FactSetRepository
	analysisRepo *repository.AnalysisRepository
}

// CrossRefServiceOption is a functional option for CrossRefService
type CrossRefServiceOption func(*CrossRefService)

// CrossRefWithFactSetRepository sets the fact set repository
func CrossRefWithFactSetRepository(repo *repository.FactSetRepository) CrossRefServiceOption {
	return func(s *CrossRefService) {
		s.factSetRepo = repo
	}
}

// CrossRefWithAnalysisRepository sets the analysis repository
func CrossRefWithAnalysisRepository(repo *repository.AnalysisRepository) CrossRefServiceOption {
	return func(s *CrossRefService) {
		s.analysisRepo = repo
	}
}

// NewCrossRefService creates a new cross-reference service
func NewCrossRefService(opts ...CrossRefServiceOption) *CrossRefService {
	s := &CrossRefService{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze runs cross-reference over the case's evidence snapshot and
// persists the ranked result, superseding any previous run. An empty
// evidence store is a valid state: the result is empty, not an error.
func (s *CrossRefService) Analyze(ctx context.Context, caseID uuid.UUID) (*models.Analysis, error) {
	if s.factSetRepo == nil {
		return nil, errors.New("fact set repository not set")
	}
	if s.analysisRepo == nil {
		return nil, errors.New("analysis repository not set")
	}

	sets, err := s.factSetRepo.ListByCaseID(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load evidence: %w", err)
	}

	result := crossReference(sets)

	analysis := &models.Analysis{
		CaseID:       caseID,
		Result:       result,
		FactSetCount: len(sets),
	}
	if err := s.analysisRepo.Create(ctx, analysis); err != nil {
		return nil, fmt.Errorf("failed to persist analysis: %w", err)
	}

	return analysis, nil
}

// GetLatest returns the most recent persisted analysis for a case.
func (s *CrossRefService) GetLatest(ctx context.Context, caseID uuid.UUID) (*models.Analysis, error) {
	if s.analysisRepo == nil {
		return nil, errors.New("analysis repository not set")
	}
	analysis, err := s.analysisRepo.GetLatestByCaseID(ctx, caseID)
	if err != nil {
		return nil, ErrNoAnalysis
	}
	return analysis, nil
}

// crossReference is the pure merge/score core. It depends only on its
// input, so re-running it on unchanged fact sets yields byte-identical
// output.
func crossReference(sets []*models.FactSet) models.RankedResult {
	merged := mergeAddresses(sets)
	vehicles := mergeVehicles(sets)

	sortMergedAddresses(merged)
	sortMergedVehicles(vehicles)

	patterns := detectPatterns(sets)
	questions := buildQuestions(merged)

	return rankResult(merged, vehicles, patterns, questions, topNResults)
}

// addressCandidate is one raw address mention with its provenance.
type addressCandidate struct {
	raw        string
	norm       string
	prov       models.Provenance
	current    *bool
	dates      *models.DateRange
	employment bool
	workLabel  bool
}

// addressGroup accumulates candidates that share a merge key.
type addressGroup struct {
	key        string
	candidates []addressCandidate
}

// mergeAddresses groups near-identical address candidates across fact
// sets and scores each group. Candidates that cannot be classified are
// still retained, tagged unknown, never dropped.
func mergeAddresses(sets []*models.FactSet) []models.MergedAddress {
	byDoc := factSetsByDocument(sets)

	var candidates []addressCandidate
	for _, fs := range sets {
		for _, af := range fs.Addresses {
			norm := normalizeAddress(af.Raw)
			if norm == "" {
				continue
			}
			candidates = append(candidates, addressCandidate{
				raw:       strings.TrimSpace(af.Raw),
				norm:      norm,
				prov:      fs.Source,
				current:   af.Current,
				dates:     af.Dates,
				workLabel: strings.EqualFold(af.Label, "work"),
			})
		}
		for _, ef := range fs.Employments {
			norm := normalizeAddress(ef.Address)
			if norm == "" {
				continue
			}
			candidates = append(candidates, addressCandidate{
				raw:        strings.TrimSpace(ef.Address),
				norm:       norm,
				prov:       fs.Source,
				current:    ef.Current,
				dates:      ef.Dates,
				employment: true,
			})
		}
	}

	// Group in input order so grouping never depends on map iteration.
	var groups []*addressGroup
	for _, cand := range candidates {
		var target *addressGroup
		for _, g := range groups {
			if addressesMatch(g.key, cand.norm) {
				target = g
				break
			}
		}
		if target == nil {
			target = &addressGroup{key: cand.norm}
			groups = append(groups, target)
		}
		target.candidates = append(target.candidates, cand)
	}

	globalLatest := ""
	for _, g := range groups {
		if d := latestDate(g.candidates); d > globalLatest {
			globalLatest = d
		}
	}

	merged := make([]models.MergedAddress, 0, len(groups))
	for _, g := range groups {
		merged = append(merged, scoreAddressGroup(g, sets, byDoc, globalLatest))
	}
	return merged
}

// scoreAddressGroup computes the merged entity for one group: source
// union, probability, type tag, linked entities, and reasoning.
func scoreAddressGroup(g *addressGroup, sets []*models.FactSet, byDoc map[uuid.UUID]*models.FactSet, globalLatest string) models.MergedAddress {
	canonical := canonicalForm(g.candidates)
	sources := sourceUnion(g.candidates)

	var reasons []string
	if len(sources) == 1 {
		reasons = append(reasons, "Appears in 1 source")
	} else {
		reasons = append(reasons, fmt.Sprintf("Appears in %d sources", len(sources)))
	}

	score := float64(baseScore(len(sources)))

	// Recency: explicit current markers beat dated history, dated
	// history beats undated mentions.
	current := false
	currentIn := ""
	for _, c := range g.candidates {
		if c.current != nil && *c.current {
			current = true
			currentIn = c.prov.Filename
			break
		}
	}
	groupLatest := latestDate(g.candidates)
	if current {
		score *= recencyMultiplier
		reasons = append(reasons, fmt.Sprintf("Marked current in %s", currentIn))
	} else if groupLatest != "" && groupLatest == globalLatest {
		score *= recencyMultiplier
		reasons = append(reasons, fmt.Sprintf("Most recent address on record (%s)", groupLatest))
	}

	// Linkage: signals that co-occur in the same source document raise
	// confidence more than an isolated address mention.
	var phones, vehicles, people []string
	phoneBoosted := false
	vehicleBoosted := false
	for _, docID := range sourceDocIDs(g.candidates) {
		fs := byDoc[docID]
		if fs == nil {
			continue
		}
		for _, pf := range fs.Phones {
			if pf.Active != nil && *pf.Active {
				phones = appendUnique(phones, pf.Raw)
				if !phoneBoosted {
					score += activePhoneBoost
					reasons = append(reasons, fmt.Sprintf("Linked to active phone ending %s", phoneLastFour(pf.Raw)))
					phoneBoosted = true
				}
			}
		}
		for _, vf := range fs.Vehicles {
			if vf.RegisteredAddress != "" && addressesMatch(g.key, normalizeAddress(vf.RegisteredAddress)) {
				vehicles = appendUnique(vehicles, vf.Raw)
				if !vehicleBoosted {
					score += vehicleLinkBoost
					reasons = append(reasons, fmt.Sprintf("Vehicle registered to this address: %s", vf.Raw))
					vehicleBoosted = true
				}
			}
		}
	}

	// Family pattern: subjects commonly fall back to relatives'
	// residences, so a match against a relative's address is a signal.
	familyMatched := false
	familyReason := ""
	for _, fs := range sets {
		for _, pf := range fs.People {
			if pf.Address == "" {
				continue
			}
			if !isFamilialRelationship(pf.Relationship) {
				continue
			}
			if addressesMatch(g.key, normalizeAddress(pf.Address)) {
				familyMatched = true
				familyReason = fmt.Sprintf("Matches %s's address (%s)", strings.ToLower(pf.Relationship), pf.Name)
				break
			}
		}
		if familyMatched {
			break
		}
	}
	if familyMatched {
		score += familyAddressBoost
		reasons = append(reasons, familyReason)
	}

	// People who share the address, across all evidence.
	for _, fs := range sets {
		for _, pf := range fs.People {
			if pf.Address != "" && addressesMatch(g.key, normalizeAddress(pf.Address)) {
				people = appendUnique(people, pf.Name)
			}
		}
	}

	if score > maxScore {
		score = maxScore
	}
	if score < 0 {
		score = 0
	}

	return models.MergedAddress{
		Canonical:   canonical,
		Normalized:  g.key,
		Sources:     sources,
		Probability: int(score),
		Type:        classifyAddress(g, current, familyMatched, groupLatest),
		Reasons:     reasons,
		LastSeen:    groupLatest,
		Phones:      phones,
		Vehicles:    vehicles,
		People:      people,
	}
}

// classifyAddress tags the merged address. Unclassifiable groups stay
// in the output under the unknown tag rather than being discarded.
func classifyAddress(g *addressGroup, current, family bool, latest string) models.AddressType {
	allWork := true
	for _, c := range g.candidates {
		if !c.employment && !c.workLabel {
			allWork = false
			break
		}
	}
	switch {
	case allWork:
		return models.AddressTypeWork
	case current:
		return models.AddressTypeCurrentResidence
	case family:
		return models.AddressTypeFamily
	case latest != "":
		return models.AddressTypeHistorical
	default:
		return models.AddressTypeUnknown
	}
}

// vehicleGroup accumulates vehicle mentions that share a merge key.
type vehicleGroup struct {
	key        string
	plate      string
	raws       []string
	sources    []models.Provenance
	docIDs     []uuid.UUID
	current    bool
	currentIn  string
	registered string
}

// mergeVehicles groups vehicle mentions by normalized description or
// plate and scores each group with the same source-count base.
func mergeVehicles(sets []*models.FactSet) []models.MergedVehicle {
	var groups []*vehicleGroup
	for _, fs := range sets {
		for _, vf := range fs.Vehicles {
			norm := normalizeVehicle(vf.Raw)
			plate := strings.ToUpper(strings.Join(strings.Fields(vf.Plate), ""))
			if norm == "" && plate == "" {
				continue
			}

			var target *vehicleGroup
			for _, g := range groups {
				if (plate != "" && g.plate == plate) || (norm != "" && g.key == norm) {
					target = g
					break
				}
			}
			if target == nil {
				target = &vehicleGroup{key: norm, plate: plate}
				groups = append(groups, target)
			}
			if target.plate == "" {
				target.plate = plate
			}
			target.raws = append(target.raws, strings.TrimSpace(vf.Raw))
			if !containsUUID(target.docIDs, fs.Source.DocumentID) {
				target.docIDs = append(target.docIDs, fs.Source.DocumentID)
				target.sources = append(target.sources, fs.Source)
			}
			if vf.Current != nil && *vf.Current && !target.current {
				target.current = true
				target.currentIn = fs.Source.Filename
			}
			if vf.RegisteredAddress != "" && target.registered == "" {
				target.registered = vf.RegisteredAddress
			}
		}
	}

	merged := make([]models.MergedVehicle, 0, len(groups))
	for _, g := range groups {
		var reasons []string
		if len(g.sources) == 1 {
			reasons = append(reasons, "Appears in 1 source")
		} else {
			reasons = append(reasons, fmt.Sprintf("Appears in %d sources", len(g.sources)))
		}

		score := float64(baseScore(len(g.sources)))
		if g.current {
			score *= recencyMultiplier
			reasons = append(reasons, fmt.Sprintf("Marked current in %s", g.currentIn))
		}
		if g.registered != "" {
			reasons = append(reasons, fmt.Sprintf("Registered to %s", MaskAddress(g.registered)))
		}
		if score > maxScore {
			score = maxScore
		}

		merged = append(merged, models.MergedVehicle{
			Canonical:   mostCommonString(g.raws),
			Plate:       g.plate,
			Sources:     g.sources,
			Probability: int(score),
			Reasons:     reasons,
		})
	}
	return merged
}

// detectPatterns emits cohabitation, movement, and contact-cluster
// patterns. Every pattern carries the literal fact references that
// produced it, never inferred text without traceable provenance.
// Addresses and phone numbers enter the evidence text in masked form
// only; the full values stay behind the reveal gate.
func detectPatterns(sets []*models.FactSet) []models.Pattern {
	var patterns []models.Pattern

	if p, ok := detectCohabitation(sets); ok {
		patterns = append(patterns, p...)
	}
	if p, ok := detectMovement(sets); ok {
		patterns = append(patterns, p)
	}
	if p, ok := detectContactClusters(sets); ok {
		patterns = append(patterns, p...)
	}
	return patterns
}

// detectCohabitation finds addresses shared by two or more people.
func detectCohabitation(sets []*models.FactSet) ([]models.Pattern, bool) {
	type occupant struct {
		name     string
		evidence string
	}
	var order []string
	byAddr := make(map[string][]occupant)
	display := make(map[string]string)

	for _, fs := range sets {
		for _, pf := range fs.People {
			if pf.Address == "" || pf.Name == "" {
				continue
			}
			norm := normalizeAddress(pf.Address)
			if norm == "" {
				continue
			}
			if _, seen := byAddr[norm]; !seen {
				order = append(order, norm)
				display[norm] = MaskAddress(strings.TrimSpace(pf.Address))
			}
			byAddr[norm] = append(byAddr[norm], occupant{
				name:     pf.Name,
				evidence: fmt.Sprintf("%s at %s (%s)", pf.Name, MaskAddress(strings.TrimSpace(pf.Address)), fs.Source.Filename),
			})
		}
	}

	var patterns []models.Pattern
	for _, norm := range order {
		occupants := byAddr[norm]
		var names, evidence []string
		for _, o := range occupants {
			if !containsString(names, normalizeName(o.name)) {
				names = append(names, normalizeName(o.name))
				evidence = append(evidence, o.evidence)
			}
		}
		if len(names) < 2 {
			continue
		}
		confidence := 55 + 10*(len(names)-2)
		if confidence > 90 {
			confidence = 90
		}
		patterns = append(patterns, models.Pattern{
			Kind:       models.PatternCohabitation,
			Confidence: confidence,
			Summary:    fmt.Sprintf("%d people share %s", len(names), display[norm]),
			Evidence:   evidence,
		})
	}
	return patterns, len(patterns) > 0
}

// detectMovement looks for three or more distinct addresses with
// non-overlapping date ranges for the subject.
func detectMovement(sets []*models.FactSet) (models.Pattern, bool) {
	type stay struct {
		norm     string
		from, to string
		evidence string
	}
	var stays []stay
	for _, fs := range sets {
		for _, af := range fs.Addresses {
			if af.Dates == nil || af.Dates.From == "" {
				continue
			}
			norm := normalizeAddress(af.Raw)
			if norm == "" {
				continue
			}
			stays = append(stays, stay{
				norm:     norm,
				from:     af.Dates.From,
				to:       af.Dates.To,
				evidence: fmt.Sprintf("%s (%s to %s) from %s", MaskAddress(strings.TrimSpace(af.Raw)), af.Dates.From, orPresent(af.Dates.To), fs.Source.Filename),
			})
		}
	}
	if len(stays) < 3 {
		return models.Pattern{}, false
	}

	// Sort by start date; insertion sort keeps this dependency-free and
	// stable for equal keys.
	for i := 1; i < len(stays); i++ {
		for j := i; j > 0 && stays[j].from < stays[j-1].from; j-- {
			stays[j], stays[j-1] = stays[j-1], stays[j]
		}
	}

	var chain []stay
	for _, s := range stays {
		if len(chain) == 0 {
			chain = append(chain, s)
			continue
		}
		prev := chain[len(chain)-1]
		if s.norm != prev.norm && prev.to != "" && s.from > prev.to {
			chain = append(chain, s)
		}
	}
	if len(chain) < 3 {
		return models.Pattern{}, false
	}

	evidence := make([]string, 0, len(chain))
	for _, s := range chain {
		evidence = append(evidence, s.evidence)
	}
	confidence := 50 + 10*(len(chain)-3)
	if confidence > 85 {
		confidence = 85
	}
	return models.Pattern{
		Kind:       models.PatternMovement,
		Confidence: confidence,
		Summary:    fmt.Sprintf("Subject moved through %d addresses over non-overlapping periods", len(chain)),
		Evidence:   evidence,
	}, true
}

// detectContactClusters finds a phone number appearing across multiple
// people's facts.
func detectContactClusters(sets []*models.FactSet) ([]models.Pattern, bool) {
	type holder struct {
		owner    string
		evidence string
	}
	var order []string
	byPhone := make(map[string][]holder)

	record := func(raw, owner, filename string) {
		norm := normalizePhone(raw)
		if norm == "" || owner == "" {
			return
		}
		if _, seen := byPhone[norm]; !seen {
			order = append(order, norm)
		}
		byPhone[norm] = append(byPhone[norm], holder{
			owner:    normalizeName(owner),
			evidence: fmt.Sprintf("%s listed for %s (%s)", MaskPhone(raw), owner, filename),
		})
	}

	for _, fs := range sets {
		for _, pf := range fs.Phones {
			record(pf.Raw, pf.Owner, fs.Source.Filename)
		}
		for _, pf := range fs.People {
			if pf.Phone != "" {
				record(pf.Phone, pf.Name, fs.Source.Filename)
			}
		}
	}

	var patterns []models.Pattern
	for _, norm := range order {
		holders := byPhone[norm]
		var owners, evidence []string
		for _, h := range holders {
			if !containsString(owners, h.owner) {
				owners = append(owners, h.owner)
				evidence = append(evidence, h.evidence)
			}
		}
		if len(owners) < 2 {
			continue
		}
		confidence := 55 + 10*(len(owners)-2)
		if confidence > 90 {
			confidence = 90
		}
		patterns = append(patterns, models.Pattern{
			Kind:       models.PatternContactCluster,
			Confidence: confidence,
			Summary:    fmt.Sprintf("Phone ending %s is shared by %d people", lastFourOf(norm), len(owners)),
			Evidence:   evidence,
		})
	}
	return patterns, len(patterns) > 0
}

// buildQuestions derives missing-data prompts from concrete gaps in
// the merged evidence. The list is deterministic: it follows the
// ranked address order. Question text and subjects carry the address
// in masked form only; full values stay behind the reveal gate.
func buildQuestions(merged []models.MergedAddress) []models.Question {
	var questions []models.Question
	for _, m := range merged {
		masked := MaskAddress(m.Canonical)
		if m.Probability < highConfidenceThreshold {
			questions = append(questions, models.Question{
				Text:    fmt.Sprintf("Can another source corroborate %s? Confidence is %d%% from %d source(s).", masked, m.Probability, len(m.Sources)),
				Subject: masked,
			})
		}
		if m.LastSeen == "" && m.Type != models.AddressTypeCurrentResidence {
			questions = append(questions, models.Question{
				Text:    fmt.Sprintf("When was the subject last known at %s? No date is attached to any mention.", masked),
				Subject: masked,
			})
		}
		for _, phone := range m.Phones {
			questions = append(questions, models.Question{
				Text:    fmt.Sprintf("Is the phone ending %s still reachable for %s?", phoneLastFour(phone), masked),
				Subject: masked,
			})
		}
	}
	return questions
}

// --- helpers ---

func factSetsByDocument(sets []*models.FactSet) map[uuid.UUID]*models.FactSet {
	byDoc := make(map[uuid.UUID]*models.FactSet, len(sets))
	for _, fs := range sets {
		byDoc[fs.Source.DocumentID] = fs
	}
	return byDoc
}

// baseScore is the cumulative contribution of n independent sources.
func baseScore(n int) int {
	score := 0
	for i := 0; i < n && i < len(sourceIncrements); i++ {
		score += sourceIncrements[i]
	}
	return score
}

// canonicalForm picks the most frequent raw variant; ties break to the
// lexicographically smallest so the choice never depends on map order.
func canonicalForm(candidates []addressCandidate) string {
	raws := make([]string, 0, len(candidates))
	for _, c := range candidates {
		raws = append(raws, c.raw)
	}
	return mostCommonString(raws)
}

func mostCommonString(values []string) string {
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}
	best := ""
	bestCount := 0
	for _, v := range values {
		c := counts[v]
		if c > bestCount || (c == bestCount && (best == "" || v < best)) {
			best = v
			bestCount = c
		}
	}
	return best
}

// sourceUnion returns one provenance per distinct document, in first
// appearance order.
func sourceUnion(candidates []addressCandidate) []models.Provenance {
	var provs []models.Provenance
	var seen []uuid.UUID
	for _, c := range candidates {
		if !containsUUID(seen, c.prov.DocumentID) {
			seen = append(seen, c.prov.DocumentID)
			provs = append(provs, c.prov)
		}
	}
	return provs
}

func sourceDocIDs(candidates []addressCandidate) []uuid.UUID {
	var ids []uuid.UUID
	for _, c := range candidates {
		if !containsUUID(ids, c.prov.DocumentID) {
			ids = append(ids, c.prov.DocumentID)
		}
	}
	return ids
}

// latestDate returns the latest date string attached to any candidate.
// ISO-style dates compare correctly as strings.
func latestDate(candidates []addressCandidate) string {
	latest := ""
	for _, c := range candidates {
		if c.dates == nil {
			continue
		}
		d := c.dates.To
		if d == "" {
			d = c.dates.From
		}
		if d > latest {
			latest = d
		}
	}
	return latest
}

var familialKeywords = []string{
	"mother", "father", "mom", "dad", "parent", "sister", "brother",
	"sibling", "aunt", "uncle", "grand", "cousin", "son", "daughter",
	"child", "wife", "husband", "spouse", "fiance", "in-law",
}

func isFamilialRelationship(rel string) bool {
	rel = strings.ToLower(rel)
	for _, kw := range familialKeywords {
		if strings.Contains(rel, kw) {
			return true
		}
	}
	return false
}

func orPresent(d string) string {
	if d == "" {
		return "present"
	}
	return d
}

func lastFourOf(digits string) string {
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

func appendUnique(list []string, v string) []string {
	if containsString(list, v) {
		return list
	}
	return append(list, v)
}

func containsString(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsUUID(list []uuid.UUID, v uuid.UUID) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
