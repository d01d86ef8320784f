package scenario

import "fmt"

// Validate checks cross-references inside the schema. It returns the
// first structural problem found. Soft content mistakes (conditions
// that never match, unreachable segments) are left to runtime, where
// they degrade to no-ops.
func (s *Schema) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("scenario ID is required")
	}
	if s.Clock.RealSecondsPerGameMinute <= 0 {
		return fmt.Errorf("clock real_seconds_per_game_minute must be positive")
	}

	flagIDs := make(map[string]bool)
	for _, f := range s.Flags {
		if f.ID == "" {
			return fmt.Errorf("flag with empty id")
		}
		if flagIDs[f.ID] {
			return fmt.Errorf("duplicate flag %s", f.ID)
		}
		flagIDs[f.ID] = true
	}

	callerIDs := map[string]bool{OperatorID: true}
	for _, c := range s.Callers {
		if c.ID == OperatorID {
			return fmt.Errorf("caller id %q is reserved", OperatorID)
		}
		if callerIDs[c.ID] {
			return fmt.Errorf("duplicate caller %s", c.ID)
		}
		callerIDs[c.ID] = true
	}

	for _, a := range s.Assumptions {
		if !callerIDs[a.HolderID] {
			return fmt.Errorf("assumption %s: unknown holder %s", a.ID, a.HolderID)
		}
	}

	evidenceIDs := make(map[string]bool)
	for _, ev := range s.Evidence {
		if evidenceIDs[ev.ID] {
			return fmt.Errorf("duplicate evidence %s", ev.ID)
		}
		evidenceIDs[ev.ID] = true
	}

	callIDs := make(map[string]bool)
	for _, call := range s.Calls {
		if callIDs[call.ID] {
			return fmt.Errorf("duplicate call %s", call.ID)
		}
		callIDs[call.ID] = true

		if !callerIDs[call.CallerID] {
			return fmt.Errorf("call %s: unknown caller %s", call.ID, call.CallerID)
		}

		segIDs := make(map[string]bool)
		for _, seg := range call.Segments {
			if segIDs[seg.ID] {
				return fmt.Errorf("call %s: duplicate segment %s", call.ID, seg.ID)
			}
			segIDs[seg.ID] = true

			silenceCount := 0
			for _, r := range seg.Responses {
				if r.IsSilence {
					silenceCount++
				}
			}
			if silenceCount > 1 {
				return fmt.Errorf("call %s segment %s: more than one silence response", call.ID, seg.ID)
			}
		}
		if call.StartSegmentID != "" && !segIDs[call.StartSegmentID] {
			return fmt.Errorf("call %s: unknown start segment %s", call.ID, call.StartSegmentID)
		}
	}

	for _, es := range s.EndStates {
		if es.EndState == "" {
			return fmt.Errorf("end-state condition with empty tag")
		}
		for _, sc := range es.ScoreConditions {
			switch sc.Comparator {
			case CompareEqual, CompareNotEqual, CompareGreaterThan,
				CompareGreaterOrEqual, CompareLessThan, CompareLessOrEqual:
			default:
				return fmt.Errorf("end-state %s: unknown comparator %q", es.EndState, sc.Comparator)
			}
		}
	}

	return nil
}
