package scorer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// isZeroScore applies the deterministic pre-filter. Matching messages
// score zero without ever reaching the judge, which bounds cost and
// latency for trivially-empty content.
func (s *Scorer) isZeroScore(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	if utf8.RuneCountInString(trimmed) <= s.cfg.MinLength {
		return true
	}
	if _, ok := s.zero[strings.ToLower(trimmed)]; ok {
		return true
	}
	// Pure punctuation / emoji: nothing readable in it.
	hasWord := false
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			hasWord = true
			break
		}
	}
	return !hasWord
}

// fallbackScore is the deterministic secondary scorer: a weighted
// function of length, question presence, vocabulary diversity,
// engagement vocabulary and spam markers, clipped to the configured
// cap. Same input, same score - no randomness, no clock.
func (s *Scorer) fallbackScore(text string) float64 {
	trimmed := strings.TrimSpace(text)
	length := utf8.RuneCountInString(trimmed)
	lower := strings.ToLower(trimmed)

	var score float64

	if length > s.cfg.LongThreshold {
		score += s.cfg.LongMessageBonus
	}
	if length > s.cfg.ExtraThreshold {
		score += s.cfg.ExtraLengthBonus
	}
	if strings.ContainsRune(trimmed, '?') && length > s.cfg.QuestionThreshold {
		score += s.cfg.QuestionBonus
	}
	for _, w := range s.cfg.EngagementWords {
		if strings.Contains(lower, w) {
			score += s.cfg.EngagementBonus
			break
		}
	}
	score += wordDiversity(lower) * s.cfg.DiversityWeight

	if hasExcessiveCaps(trimmed) {
		score -= s.cfg.SpamPenalty
	}
	if hasRepeatedRun(trimmed) {
		score -= s.cfg.SpamPenalty
	}
	if emojiCount(trimmed) > 3 {
		score -= s.cfg.SpamPenalty
	}

	return clamp(score, 0, clamp(s.cfg.FallbackCap, 0, maxScore))
}

// wordDiversity is the unique-word ratio in [0,1]. Single-word texts
// get no diversity credit.
func wordDiversity(lower string) float64 {
	words := strings.Fields(lower)
	if len(words) < 2 {
		return 0
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	return float64(len(unique)) / float64(len(words))
}

// hasExcessiveCaps flags shouting: mostly upper-case letters in a
// message with enough letters for that to mean anything.
func hasExcessiveCaps(text string) bool {
	var letters, upper int
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 10 && float64(upper)/float64(letters) > 0.7
}

// hasRepeatedRun flags runs of four or more identical characters
// ("loooool", "!!!!").
func hasRepeatedRun(text string) bool {
	var prev rune
	run := 1
	for _, r := range text {
		if r == prev {
			run++
			if run >= 4 {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// emojiCount approximates emoji usage by counting non-ASCII symbol
// runes.
func emojiCount(text string) int {
	count := 0
	for _, r := range text {
		if r > unicode.MaxASCII && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			count++
		}
	}
	return count
}
