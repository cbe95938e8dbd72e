// Package merge reconciles two snapshots of the application state, one
// store at a time. The primary side wins conflicts unless a policy says
// otherwise; inputs are never modified.
package merge

import (
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/rcliao/state-sync/internal/model"
)

// AppState merges every store of secondary into primary using the policy
// fixed for that store.
func AppState(primary, secondary model.AppState) model.AppState {
	return model.AppState{
		Chat:   Chat(primary.Chat, secondary.Chat),
		Access: WithUpdate(primary.Access, secondary.Access),
		Config: WithUpdate(primary.Config, secondary.Config),
		Mask:   Masks(primary.Mask, secondary.Mask),
		Prompt: Prompts(primary.Prompt, secondary.Prompt),
	}
}

// Chat unions sessions by id and, within a shared session, messages by id.
// Secondary sessions without messages are skipped. Merged message lists are
// ordered by date ascending and sessions by lastUpdate descending; sessions
// only in primary are kept as they are.
func Chat(primary, secondary model.ChatState) model.ChatState {
	merged := primary
	merged.Extra = mergeExtra(primary.Extra, secondary.Extra)
	merged.Sessions = make([]model.Session, 0, len(primary.Sessions)+len(secondary.Sessions))

	index := make(map[string]int, len(primary.Sessions))
	for _, s := range primary.Sessions {
		s.Messages = slices.Clone(s.Messages)
		if _, dup := index[s.ID]; !dup {
			index[s.ID] = len(merged.Sessions)
		}
		merged.Sessions = append(merged.Sessions, s)
	}

	for _, s := range secondary.Sessions {
		if len(s.Messages) == 0 {
			continue
		}

		i, ok := index[s.ID]
		if !ok {
			s.Messages = slices.Clone(s.Messages)
			index[s.ID] = len(merged.Sessions)
			merged.Sessions = append(merged.Sessions, s)
			continue
		}

		target := &merged.Sessions[i]
		seen := make(map[string]bool, len(target.Messages))
		for _, m := range target.Messages {
			seen[m.ID] = true
		}
		for _, m := range s.Messages {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			target.Messages = append(target.Messages, m)
		}
		sortByDate(target.Messages)
	}

	sort.SliceStable(merged.Sessions, func(a, b int) bool {
		return merged.Sessions[a].LastUpdate > merged.Sessions[b].LastUpdate
	})
	return merged
}

// sortByDate orders msgs by date ascending, keeping the relative order of
// equal dates. A message whose date does not parse takes the date of the
// message before it, so it stays next to its neighbour.
func sortByDate(msgs []model.Message) {
	type dated struct {
		msg model.Message
		at  time.Time
	}
	keyed := make([]dated, len(msgs))
	var last time.Time
	for i, m := range msgs {
		if t, ok := m.DateTime(); ok {
			last = t
		}
		keyed[i] = dated{msg: m, at: last}
	}
	sort.SliceStable(keyed, func(a, b int) bool {
		return keyed[a].at.Before(keyed[b].at)
	})
	for i := range keyed {
		msgs[i] = keyed[i].msg
	}
}

// Prompts unions prompts by key, primary entries winning collisions.
func Prompts(primary, secondary model.PromptState) model.PromptState {
	merged := primary
	merged.Extra = mergeExtra(primary.Extra, secondary.Extra)
	merged.Prompts = unionByKey(primary.Prompts, secondary.Prompts)
	return merged
}

// Masks unions masks by key, primary entries winning collisions.
func Masks(primary, secondary model.MaskState) model.MaskState {
	merged := primary
	merged.Extra = mergeExtra(primary.Extra, secondary.Extra)
	merged.Masks = unionByKey(primary.Masks, secondary.Masks)
	return merged
}

// mergeExtra keeps primary's unrecognized store fields and adds those only
// secondary has.
func mergeExtra(primary, secondary model.Record) model.Record {
	if len(secondary) == 0 {
		return primary
	}
	return fillGaps(primary, secondary)
}

func unionByKey[V any](primary, secondary map[string]V) map[string]V {
	out := make(map[string]V, len(primary)+len(secondary))
	maps.Copy(out, secondary)
	maps.Copy(out, primary)
	return out
}

// Default lastUpdateTime values for records that carry none. They differ so
// that when both sides lack a timestamp the secondary side wins.
const (
	missingPrimaryUpdate   = 0
	missingSecondaryUpdate = 1
)

// WithUpdate picks the record with the greater lastUpdateTime as the base
// and fills its absent fields from the other record. On a tie the primary
// record is the base.
func WithUpdate(primary, secondary model.Record) model.Record {
	primaryTime := primary.UpdateTimeOr(missingPrimaryUpdate)
	secondaryTime := secondary.UpdateTimeOr(missingSecondaryUpdate)

	if primaryTime < secondaryTime {
		return fillGaps(secondary, primary)
	}
	return fillGaps(primary, secondary)
}

// fillGaps copies winner and adds every field of loser that winner lacks.
// Fields the winner already has are never overwritten.
func fillGaps(winner, loser model.Record) model.Record {
	out := winner.Clone()
	for k, v := range loser {
		if !out.Has(k) {
			out[k] = append([]byte(nil), v...)
		}
	}
	return out
}
