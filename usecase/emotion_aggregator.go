package usecase

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/satriahrh/tawa/domain"
	"github.com/satriahrh/tawa/domain/entities"
)

// AggregateEmotions reduces raw per-segment emotion predictions into the top
// ranked emotions. The expected shape is
//
//	[{"results": [{"emotions": [{"name": "Joy", "score": 0.8}]}]}]
//
// Only the first result set is read; later sets are ignored even when
// malformed. Every emotion sum is divided by the number of segments that
// carried any emotion data, so an emotion missing from some segments is
// down-weighted. Any malformed input yields empty emotions.
func AggregateEmotions(raw json.RawMessage, now time.Time) entities.ProcessedEmotions {
	result, err := aggregateEmotions(raw, now)
	if err != nil {
		return entities.EmptyEmotions(now)
	}
	return result
}

// aggregateEmotions is AggregateEmotions with the failure reason kept, for
// callers that want to log it
func aggregateEmotions(raw json.RawMessage, now time.Time) (result entities.ProcessedEmotions, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = entities.EmptyEmotions(now)
			err = fmt.Errorf("%w: panic: %v", domain.ErrAggregationFailed, r)
		}
	}()

	var resultSets []any
	if err := json.Unmarshal(raw, &resultSets); err != nil {
		return entities.EmptyEmotions(now), fmt.Errorf("%w: predictions are not a list: %v", domain.ErrAggregationFailed, err)
	}
	if len(resultSets) == 0 {
		return entities.EmptyEmotions(now), fmt.Errorf("%w: no result sets", domain.ErrAggregationFailed)
	}

	sums := make(map[string]float64)
	var order []string
	segmentsCount := 0

	set, ok := resultSets[0].(map[string]any)
	if !ok {
		return entities.EmptyEmotions(now), fmt.Errorf("%w: result set is not an object", domain.ErrAggregationFailed)
	}
	segments, ok := set["results"].([]any)
	if !ok {
		return entities.EmptyEmotions(now), fmt.Errorf("%w: result set has no results list", domain.ErrAggregationFailed)
	}

	for i, s := range segments {
		segment, ok := s.(map[string]any)
		if !ok {
			return entities.EmptyEmotions(now), fmt.Errorf("%w: segment %d is not an object", domain.ErrAggregationFailed, i)
		}
		emotions, ok := segment["emotions"].([]any)
		if !ok || len(emotions) == 0 {
			continue
		}

		for _, e := range emotions {
			emotion, ok := e.(map[string]any)
			if !ok {
				return entities.EmptyEmotions(now), fmt.Errorf("%w: emotion in segment %d is not an object", domain.ErrAggregationFailed, i)
			}
			name, ok := emotion["name"].(string)
			if !ok {
				return entities.EmptyEmotions(now), fmt.Errorf("%w: emotion name in segment %d is not a string", domain.ErrAggregationFailed, i)
			}
			score, ok := emotion["score"].(float64)
			if !ok {
				return entities.EmptyEmotions(now), fmt.Errorf("%w: score of %q in segment %d is not a number", domain.ErrAggregationFailed, name, i)
			}
			if _, seen := sums[name]; !seen {
				order = append(order, name)
			}
			sums[name] += score
		}
		segmentsCount++
	}

	if segmentsCount == 0 {
		return entities.EmptyEmotions(now), nil
	}

	scores := make([]entities.EmotionScore, 0, len(order))
	for _, name := range order {
		scores = append(scores, entities.EmotionScore{
			Name:  name,
			Score: sums[name] / float64(segmentsCount),
		})
	}
	sort.SliceStable(scores, func(a, b int) bool {
		return scores[a].Score > scores[b].Score
	})
	if len(scores) > entities.MaxTopEmotions {
		scores = scores[:entities.MaxTopEmotions]
	}

	return entities.ProcessedEmotions{
		TopEmotions: scores,
		Timestamp:   now,
	}, nil
}
