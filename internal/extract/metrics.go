package extract

import (
	"math"
	"sort"
	"strings"

	"github.com/mangoseo/onpage-audit/internal/seo"
)

const densityTerms = 10

// contentMetrics derives measurements from the stripped content text.
// All fields are deterministic functions of the input.
func contentMetrics(text string, imageCount int) seo.ContentMetrics {
	words := strings.Fields(text)
	wordCount := len(words)

	if strings.TrimSpace(text) == "" {
		return seo.ContentMetrics{KeywordDensity: map[string]float64{}, ImageCount: imageCount}
	}

	sentenceCount := strings.Count(text, ".")
	if sentenceCount < 1 {
		sentenceCount = 1
	}

	unique := map[string]bool{}
	for _, w := range words {
		unique[w] = true
	}

	avgWPS := float64(wordCount) / float64(sentenceCount)
	quality := clamp(float64(len(unique))/float64(max(wordCount, 1))*100, 0, 100)

	return seo.ContentMetrics{
		WordCount:           wordCount,
		SentenceCount:       sentenceCount,
		AvgWordsPerSentence: round2(avgWPS),
		UniqueWords:         len(unique),
		CharCount:           len(text),
		ReadabilityScore:    round2(Readability(text)),
		KeywordDensity:      keywordDensity(words),
		ContentQualityScore: round2(quality),
		ImageCount:          imageCount,
	}
}

// keywordDensity maps the most frequent terms longer than three
// characters to their share of the total word count. Ties break
// alphabetically so the map's top set is stable.
func keywordDensity(words []string) map[string]float64 {
	freq := map[string]int{}
	for _, w := range words {
		w = strings.ToLower(w)
		if len(w) > 3 {
			freq[w]++
		}
	}
	if len(freq) == 0 || len(words) == 0 {
		return map[string]float64{}
	}

	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > densityTerms {
		terms = terms[:densityTerms]
	}

	density := make(map[string]float64, len(terms))
	for _, term := range terms {
		density[term] = round2(float64(freq[term]) / float64(len(words)) * 100)
	}
	return density
}

// Readability computes a Flesch reading ease estimate in [0, 100].
// Higher is easier to read.
func Readability(text string) float64 {
	if text == "" {
		return 0
	}
	words := strings.Fields(text)
	sentences := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
	if len(words) == 0 || sentences == 0 {
		return 0
	}
	avgWordsPerSentence := float64(len(words)) / float64(sentences)
	avgSyllablesPerWord := syllablesPerWord(words)

	score := 206.835 - 1.015*avgWordsPerSentence - 84.6*avgSyllablesPerWord
	return clamp(score, 0, 100)
}

func syllablesPerWord(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	total := 0
	for _, word := range words {
		word = strings.ToLower(word)
		if len(word) <= 3 {
			total++
			continue
		}
		count := 0
		prevVowel := false
		for _, ch := range word {
			vowel := strings.ContainsRune("aeiouy", ch)
			if vowel && !prevVowel {
				count++
			}
			prevVowel = vowel
		}
		// Silent trailing e does not add a syllable.
		if strings.HasSuffix(word, "e") && count > 1 {
			count--
		}
		if count < 1 {
			count = 1
		}
		total += count
	}
	return float64(total) / float64(len(words))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
