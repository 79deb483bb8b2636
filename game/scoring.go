package game

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

const (
	responseWeight = 0.7
	profileWeight  = 0.3
)

// Profile is the subset of a user profile that feeds compatibility.
type Profile struct {
	CommunicationStyle string
	EnergyLevel        string
	Interests          []string
}

type PairScore struct {
	User1ID            uuid.UUID `json:"user1Id"`
	User2ID            uuid.UUID `json:"user2Id"`
	Score              float64   `json:"score"`
	ResponseSimilarity float64   `json:"responseSimilarity"`
	ProfileAffinity    float64   `json:"profileAffinity"`
	SharedRounds       int       `json:"sharedRounds"`
}

type ParticipantResult struct {
	UserID      uuid.UUID  `json:"userId"`
	Responses   int        `json:"responses"`
	Left        bool       `json:"left"`
	BestMatchID *uuid.UUID `json:"bestMatchId,omitempty"`
	BestScore   float64    `json:"bestScore"`
}

type Results struct {
	SessionID    uuid.UUID           `json:"sessionId"`
	Pairs        []PairScore         `json:"pairs"`
	Participants []ParticipantResult `json:"participants"`
}

// ComputeResults scores every pair of participants that stayed until the end.
// Scores run from 0 to 100.
func ComputeResults(s *Session, profiles map[uuid.UUID]Profile) Results {
	active := s.ActiveParticipants()
	tokens := tokenizeResponses(s)

	pairs := make([]PairScore, 0, len(active)*(len(active)-1)/2)
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			a, b := orderIDs(active[i], active[j])
			sim, shared := responseSimilarity(s.TotalRounds, tokens[a], tokens[b])
			aff := profileAffinity(profiles[a], profiles[b])
			pairs = append(pairs, PairScore{
				User1ID:            a,
				User2ID:            b,
				Score:              round2(100 * (responseWeight*sim + profileWeight*aff)),
				ResponseSimilarity: round2(sim),
				ProfileAffinity:    round2(aff),
				SharedRounds:       shared,
			})
		}
	}
	sortPairs(pairs)

	participants := make([]ParticipantResult, 0, len(s.Participants))
	for _, p := range s.Participants {
		res := ParticipantResult{UserID: p.UserID, Left: !p.Active()}
		for round := 1; round <= s.TotalRounds; round++ {
			if _, ok := s.Responses[round][p.UserID]; ok {
				res.Responses++
			}
		}
		for _, pair := range pairs {
			if pair.User1ID != p.UserID && pair.User2ID != p.UserID {
				continue
			}
			other := pair.User1ID
			if other == p.UserID {
				other = pair.User2ID
			}
			res.BestMatchID = &other
			res.BestScore = pair.Score
			break
		}
		participants = append(participants, res)
	}

	return Results{SessionID: s.ID, Pairs: pairs, Participants: participants}
}

// PairMatches greedily picks the highest scoring pairs so that nobody is
// matched twice. Pairs below minScore are never picked.
func PairMatches(pairs []PairScore, minScore float64) []PairScore {
	sorted := append([]PairScore(nil), pairs...)
	sortPairs(sorted)

	taken := make(map[uuid.UUID]bool)
	var picked []PairScore
	for _, p := range sorted {
		if p.Score < minScore {
			break
		}
		if taken[p.User1ID] || taken[p.User2ID] {
			continue
		}
		taken[p.User1ID] = true
		taken[p.User2ID] = true
		picked = append(picked, p)
	}
	return picked
}

func sortPairs(pairs []PairScore) {
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].Score != pairs[j].Score {
			return pairs[i].Score > pairs[j].Score
		}
		if pairs[i].User1ID != pairs[j].User1ID {
			return pairs[i].User1ID.String() < pairs[j].User1ID.String()
		}
		return pairs[i].User2ID.String() < pairs[j].User2ID.String()
	})
}

func tokenizeResponses(s *Session) map[uuid.UUID]map[int]map[string]struct{} {
	out := make(map[uuid.UUID]map[int]map[string]struct{})
	for round, answers := range s.Responses {
		for userID, text := range answers {
			if out[userID] == nil {
				out[userID] = make(map[int]map[string]struct{})
			}
			out[userID][round] = Tokenize(text)
		}
	}
	return out
}

// responseSimilarity averages the per-round Jaccard index over the rounds both
// users answered.
func responseSimilarity(totalRounds int, a, b map[int]map[string]struct{}) (float64, int) {
	var sum float64
	shared := 0
	for round := 1; round <= totalRounds; round++ {
		ta, okA := a[round]
		tb, okB := b[round]
		if !okA || !okB {
			continue
		}
		shared++
		sum += jaccard(ta, tb)
	}
	if shared == 0 {
		return 0, 0
	}
	return sum / float64(shared), shared
}

func profileAffinity(a, b Profile) float64 {
	var score float64

	score += 0.5 * jaccard(setOf(a.Interests), setOf(b.Interests))

	if a.CommunicationStyle != "" && a.CommunicationStyle == b.CommunicationStyle {
		score += 0.25
	}

	switch energyDistance(a.EnergyLevel, b.EnergyLevel) {
	case 0:
		score += 0.25
	case 1:
		score += 0.125
	}

	return score
}

// energyDistance is -1 when either level is unknown.
func energyDistance(a, b string) int {
	rank := map[string]int{"low": 0, "medium": 1, "high": 2}
	ra, okA := rank[a]
	rb, okB := rank[b]
	if !okA || !okB {
		return -1
	}
	if ra > rb {
		return ra - rb
	}
	return rb - ra
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {}, "you": {},
	"all": {}, "any": {}, "can": {}, "had": {}, "her": {}, "was": {}, "one": {},
	"our": {}, "out": {}, "has": {}, "have": {}, "his": {}, "how": {}, "its": {},
	"that": {}, "this": {}, "with": {}, "from": {}, "they": {}, "what": {},
	"would": {}, "there": {}, "their": {}, "about": {}, "which": {}, "when": {},
	"just": {}, "like": {}, "really": {}, "very": {}, "been": {}, "into": {},
	"will": {}, "your": {}, "than": {}, "then": {}, "them": {}, "also": {},
}

// Tokenize lower-cases text, splits on anything that is not a letter or digit
// and drops short words and stop words.
func Tokenize(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

func setOf(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for k := range a {
		if _, ok := b[k]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func orderIDs(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if a.String() > b.String() {
		return b, a
	}
	return a, b
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
