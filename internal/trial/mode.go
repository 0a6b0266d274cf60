package trial

// EvaluationMode identifies which technique a trial tested: no skill aid, an
// injected oracle skill, or a library-selected skill.
type EvaluationMode string

const (
	ModeBaseline         EvaluationMode = "baseline"
	ModeOracleSkill      EvaluationMode = "oracle_skill"
	ModeLibrarySelection EvaluationMode = "library_selection"
)

// AllModes lists every evaluation mode in orchestration order.
func AllModes() []EvaluationMode {
	return []EvaluationMode{ModeBaseline, ModeOracleSkill, ModeLibrarySelection}
}

// RequiresSkill reports whether the mode must carry a skill reference.
func (m EvaluationMode) RequiresSkill() bool {
	return m == ModeOracleSkill || m == ModeLibrarySelection
}

// Valid reports whether m is one of the known evaluation modes.
func (m EvaluationMode) Valid() bool {
	return m == ModeBaseline || m.RequiresSkill()
}

// ModeSelection binds an evaluation mode to its skill reference. The
// constructor enforces the mode/skill pairing, so a selection that exists is
// always well-formed: baseline carries no skill, the other modes always do.
type ModeSelection struct {
	mode     EvaluationMode
	skillRef string
}

// NewModeSelection validates the mode/skill pairing. A skill reference
// supplied alongside baseline is ignored; a skill-bearing mode without a
// reference fails with invalid_skill_mode.
func NewModeSelection(mode EvaluationMode, skillRef string) (ModeSelection, error) {
	switch mode {
	case ModeBaseline:
		return ModeSelection{mode: ModeBaseline}, nil
	case ModeOracleSkill, ModeLibrarySelection:
		if skillRef == "" {
			return ModeSelection{}, Errorf(CondInvalidSkillMode,
				"evaluation mode %q requires a skill id", mode)
		}
		return ModeSelection{mode: mode, skillRef: skillRef}, nil
	default:
		return ModeSelection{}, Errorf(CondInvalidSkillMode,
			"unknown evaluation mode %q", mode)
	}
}

// Mode returns the selected evaluation mode.
func (s ModeSelection) Mode() EvaluationMode { return s.mode }

// SkillRef returns the skill reference and whether one is present.
func (s ModeSelection) SkillRef() (string, bool) {
	return s.skillRef, s.skillRef != ""
}
