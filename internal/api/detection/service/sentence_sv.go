package detectionService

import (
	"VSLBackend/internal/api/detection"
	contextPkg "VSLBackend/pkg/context"
	"VSLBackend/pkg/redis"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"
)

// verbatimGlossLimit is the largest gloss count returned without paraphrasing.
const verbatimGlossLimit = 2

// dedupGlosses NFC-normalises, lower-cases and trims labels, dropping blanks
// and any label already seen.
func dedupGlosses(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	glosses := make([]string, 0, len(labels))

	for _, l := range labels {
		g := strings.ToLower(strings.TrimSpace(norm.NFC.String(l)))
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		glosses = append(glosses, g)
	}

	return glosses
}

func (s *detectionService) GenerateSentence(ctx context.Context, source detection.GlossSource) (string, error) {
	if source == nil {
		return "", nil
	}

	glosses := dedupGlosses(source.Labels())
	if len(glosses) == 0 {
		return "", nil
	}

	text := strings.Join(glosses, " ")
	if len(glosses) <= verbatimGlossLimit || s.paraphraser == nil {
		return text, nil
	}

	requestID := contextPkg.GetRequestID(ctx)

	if s.cache != nil {
		cached, err := s.cache.GetSentence(ctx, text)
		switch {
		case err == nil:
			s.metrics.SentenceCache(true)
			return cached, nil
		case errors.Is(err, redis.ErrCacheMiss):
			s.metrics.SentenceCache(false)
		default:
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("Sentence cache lookup failed")
		}
	}

	start := time.Now()
	sentence, err := s.paraphraser.Paraphrase(ctx, text)
	s.metrics.ObserveOracle("paraphrase", time.Since(start))
	s.metrics.ParaphraseCalled()
	if err != nil {
		return "", fmt.Errorf("%w: %v", detection.ErrProcessing, err)
	}

	if s.cache != nil {
		if err := s.cache.SetSentence(ctx, text, sentence, s.cfg.SentenceCacheTTL); err != nil {
			s.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}).Warn("Failed to cache sentence")
		}
	}

	return sentence, nil
}
