// Package reconcile classifies imported credentials against a snapshot of
// the existing vault. It never mutates the vault and never merges records;
// it only describes how each incoming record relates to what is stored.
package reconcile

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/atinyakov/keeperimport/internal/importer"
	"github.com/atinyakov/keeperimport/internal/models"
	"github.com/atinyakov/keeperimport/internal/similarity"
)

// Field names reported in Decision.DifferingFields.
const (
	FieldName     = "name"
	FieldURL      = "url"
	FieldUsername = "username"
	FieldPassword = "password"
)

// DefaultHighThreshold is the score at or above which a non-exact match is
// reported as a fuzzy candidate.
const DefaultHighThreshold = 0.85

// Thresholds holds the tunable classification boundaries.
type Thresholds struct {
	// High is the minimum score for a FuzzyCandidate.
	High float64 `json:"high" yaml:"high"`
}

// DefaultThresholds returns the thresholds used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{High: DefaultHighThreshold}
}

// Validate checks that High lies in [0, 1].
func (t Thresholds) Validate() error {
	if t.High < 0 || t.High > 1 {
		return fmt.Errorf("high threshold %v out of range [0,1]", t.High)
	}
	return nil
}

// Decision is the classification of one incoming record.
type Decision struct {
	Kind     models.DecisionKind         `json:"kind"`
	Incoming importer.IncomingCredential `json:"incoming"`
	// Existing is a copy of the matched vault entry; nil for NewEntry.
	Existing *models.VaultEntry `json:"existing,omitempty"`
	// Score is the mean field similarity against Existing.
	Score float64 `json:"score"`
	// DifferingFields lists compared fields that are not identical.
	DifferingFields []string `json:"differing_fields,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithThresholds overrides the default thresholds.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithPrefilter enables or disables candidate pre-filtering. When enabled,
// entries that share a url host or whose names fuzzy-match are scored first;
// any other entry is scored only if its length ceiling can still reach the
// high threshold and the best score so far. Decisions equal a full scan.
func WithPrefilter(on bool) Option {
	return func(e *Engine) { e.prefilter = on }
}

// Engine matches incoming records against vault entries. It holds only
// configuration and is safe for concurrent use.
type Engine struct {
	thresholds Thresholds
	prefilter  bool
}

// New builds an Engine. Invalid thresholds are reported as an error.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{thresholds: DefaultThresholds(), prefilter: true}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.thresholds.Validate(); err != nil {
		return nil, errors.Join(errors.New("reconcile: invalid thresholds"), err)
	}
	return e, nil
}

// Thresholds returns the engine's thresholds.
func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// fields lists the compared fields in the order they are reported.
var fields = [...]string{FieldName, FieldURL, FieldUsername, FieldPassword}

// prepared holds the normalized view of a vault entry or incoming record.
type prepared struct {
	idx     int
	values  [len(fields)]similarity.NormalizedString
	lens    [len(fields)]int
	hostKey string
}

func prepare(idx int, name, rawURL, username, password string) prepared {
	p := prepared{
		idx: idx,
		values: [len(fields)]similarity.NormalizedString{
			similarity.Normalize(name),
			similarity.Normalize(rawURL),
			similarity.Normalize(username),
			similarity.Normalize(password),
		},
		hostKey: hostKey(rawURL),
	}
	for i, v := range p.values {
		p.lens[i] = v.Len()
	}
	return p
}

func (p prepared) name() similarity.NormalizedString { return p.values[0] }

// Reconcile classifies every incoming record against existing. The result
// has one decision per incoming record, in input order. Neither slice is
// modified; callers must not mutate them concurrently.
func (e *Engine) Reconcile(existing []models.VaultEntry, incoming []importer.IncomingCredential) []Decision {
	vault := make([]prepared, len(existing))
	byHost := make(map[string][]int)
	for i, ent := range existing {
		vault[i] = prepare(i, ent.Name, ent.URL, ent.Username, ent.Password)
		if k := vault[i].hostKey; k != "" {
			byHost[k] = append(byHost[k], i)
		}
	}

	out := make([]Decision, 0, len(incoming))
	for _, in := range incoming {
		out = append(out, e.classify(existing, vault, byHost, in))
	}
	return out
}

type scored struct {
	idx    int
	score  float64
	fields []string
}

// beats reports whether s should replace best: a higher score, or the same
// score on an earlier entry.
func (s *scored) beats(best *scored) bool {
	return best == nil || s.score > best.score || (s.score == best.score && s.idx < best.idx)
}

func (e *Engine) classify(existing []models.VaultEntry, vault []prepared, byHost map[string][]int, in importer.IncomingCredential) Decision {
	cand := prepare(-1, in.Name, in.URL, in.Username, in.Password)
	key := cand.hostKey

	var best, conflict *scored
	consider := func(idx int) {
		s := score(cand, vault[idx])
		if s.beats(best) {
			best = &s
		}
		if key != "" && vault[idx].hostKey == key && s.beats(conflict) {
			conflict = &s
		}
	}

	if !e.prefilter {
		for i := range vault {
			consider(i)
		}
	} else {
		picked := e.candidates(vault, byHost, cand)
		for i := range vault {
			if picked[i] {
				consider(i)
			}
		}
		// Entries outside the prefilter share no host, so they only matter
		// if they can reach the threshold and the current best. Their
		// length ceiling decides that without computing distances.
		for i := range vault {
			if picked[i] {
				continue
			}
			floor := e.thresholds.High
			if best != nil && best.score > floor {
				floor = best.score
			}
			if scoreCeiling(cand, vault[i]) < floor {
				continue
			}
			consider(i)
		}
	}

	switch {
	case best != nil && best.score == 1.0:
		return decision(models.ExactDuplicate, in, existing, best)
	case best != nil && best.score >= e.thresholds.High:
		return decision(models.FuzzyCandidate, in, existing, best)
	case conflict != nil:
		return decision(models.Conflict, in, existing, conflict)
	default:
		return Decision{Kind: models.NewEntry, Incoming: in}
	}
}

// candidates marks the vault entries that share the host key of in or
// whose names fuzzy-match it in either direction.
func (e *Engine) candidates(vault []prepared, byHost map[string][]int, in prepared) map[int]bool {
	picked := make(map[int]bool)
	for _, idx := range byHost[in.hostKey] {
		picked[idx] = true
	}
	if in.name().IsEmpty() {
		return picked
	}
	for i, v := range vault {
		if picked[i] || v.name().IsEmpty() {
			continue
		}
		if fuzzy.MatchNormalizedFold(in.name().String(), v.name().String()) ||
			fuzzy.MatchNormalizedFold(v.name().String(), in.name().String()) {
			picked[i] = true
		}
	}
	return picked
}

func score(a, b prepared) scored {
	s := scored{idx: b.idx}
	var sum float64
	for i, field := range fields {
		sim := similarity.Similarity(a.values[i], b.values[i])
		sum += sim
		if sim < 1.0 {
			s.fields = append(s.fields, field)
		}
	}
	if len(s.fields) == 0 {
		s.score = 1.0
	} else {
		s.score = sum / float64(len(fields))
	}
	return s
}

// scoreCeiling bounds score(a, b) from above using rune lengths alone. The
// edit distance is at least the length difference, so each field's
// similarity is at most shorter/longer.
func scoreCeiling(a, b prepared) float64 {
	var sum float64
	for i := range fields {
		la, lb := a.lens[i], b.lens[i]
		switch {
		case la == 0 && lb == 0:
			sum += 1.0
		case la < lb:
			sum += float64(la) / float64(lb)
		default:
			sum += float64(lb) / float64(la)
		}
	}
	return sum / float64(len(fields))
}

func decision(kind models.DecisionKind, in importer.IncomingCredential, existing []models.VaultEntry, s *scored) Decision {
	ent := existing[s.idx]
	return Decision{
		Kind:            kind,
		Incoming:        in,
		Existing:        &ent,
		Score:           s.score,
		DifferingFields: s.fields,
	}
}

// hostKey reduces a url to a comparable key: the lowercased host without a
// leading "www.", or the normalized text when no host can be parsed.
func hostKey(raw string) string {
	n := similarity.Normalize(raw).String()
	if n == "" {
		return ""
	}
	candidate := n
	if !strings.Contains(candidate, "://") {
		candidate = "//" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil || u.Hostname() == "" {
		return n
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// Summary counts decisions per kind.
func Summary(decisions []Decision) map[models.DecisionKind]int {
	out := map[models.DecisionKind]int{
		models.NewEntry:       0,
		models.ExactDuplicate: 0,
		models.FuzzyCandidate: 0,
		models.Conflict:       0,
	}
	for _, d := range decisions {
		out[d.Kind]++
	}
	return out
}
