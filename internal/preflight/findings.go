package preflight

// Code identifies one validation rule.
type Code string

const (
	CodeVisualImageMissing    Code = "VISUAL_IMAGE_MISSING"
	CodeVisualComicMissing    Code = "VISUAL_COMIC_MISSING"
	CodeVisualVideoMissing    Code = "VISUAL_VIDEO_MISSING"
	CodeVisualURLInvalid      Code = "VISUAL_ASSET_URL_INVALID"
	CodeVisualURLUnreachable  Code = "VISUAL_ASSET_URL_UNREACHABLE"
	CodeVisualConflict        Code = "VISUAL_CONFLICT_BOTH_PRESENT"
	CodeNarrationAudioMissing Code = "NARRATION_AUDIO_MISSING"
	CodeBackgroundMissing     Code = "BACKGROUND_TRACK_MISSING"
)

// Severity splits findings into blocking errors and advisory warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one validation outcome attributed to a scene. SceneOrdinal is
// zero for project-level findings.
type Finding struct {
	Code         Code     `json:"code"`
	Severity     Severity `json:"severity"`
	SceneOrdinal int      `json:"scene_ordinal,omitempty"`
	Message      string   `json:"message"`
	Hint         string   `json:"hint,omitempty"`
}

// Report is the full preflight outcome. CanBuild is false whenever at least
// one blocking error is present.
type Report struct {
	CanBuild bool      `json:"can_build"`
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
}

func (r *Report) addError(f Finding) {
	f.Severity = SeverityError
	r.Errors = append(r.Errors, f)
	r.CanBuild = false
}

func (r *Report) addWarning(f Finding) {
	f.Severity = SeverityWarning
	r.Warnings = append(r.Warnings, f)
}
