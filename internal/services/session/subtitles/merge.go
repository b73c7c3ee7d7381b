package subtitles

import (
	"fmt"

	"torrentplayer/internal/domain"
)

// LocaleMatcher reports whether a detected language is the system language.
type LocaleMatcher interface {
	IsSystemLanguage(name string) bool
}

// Merge appends tracks whose file path is not already present. With
// autoSelect, the first offered track is selected, and the first track in
// the system language then takes the selection and keeps it. Labels are
// recomputed afterwards.
func Merge(st *domain.SubtitleState, tracks []domain.SubtitleTrack, autoSelect bool, matcher LocaleMatcher) {
	localeLocked := false
	for i, track := range tracks {
		if hasPath(st.Tracks, track.FilePath) {
			continue
		}
		st.Tracks = append(st.Tracks, track)
		idx := len(st.Tracks) - 1

		if !autoSelect || localeLocked {
			continue
		}
		matches := matcher != nil && matcher.IsSystemLanguage(track.Language)
		if i == 0 || matches {
			st.SelectedIndex = idx
		}
		if matches {
			localeLocked = true
		}
	}
	Relabel(st)
}

func hasPath(tracks []domain.SubtitleTrack, path string) bool {
	for _, t := range tracks {
		if t.FilePath == path {
			return true
		}
	}
	return false
}

// Relabel makes every label unique: the Nth track of a language is labelled
// "<language> N" for N >= 2.
func Relabel(st *domain.SubtitleState) {
	counts := make(map[string]int, len(st.Tracks))
	for i := range st.Tracks {
		lang := st.Tracks[i].Language
		counts[lang]++
		if n := counts[lang]; n > 1 {
			st.Tracks[i].Label = fmt.Sprintf("%s %d", lang, n)
		} else {
			st.Tracks[i].Label = lang
		}
	}
}

// Select sets the current track. index -1 turns subtitles off.
func Select(st *domain.SubtitleState, index int) error {
	if index < domain.NoSubtitle || index >= len(st.Tracks) {
		return fmt.Errorf("%w: subtitle index %d out of range", domain.ErrInvalidCommand, index)
	}
	st.SelectedIndex = index
	return nil
}

// Candidates lists the on-disk paths of subtitle files in the torrent whose
// pieces are all present.
func Candidates(summary *domain.TorrentSummary) []string {
	if summary == nil || summary.Progress == nil {
		return nil
	}
	var out []string
	for i, f := range summary.Files {
		if !domain.IsSubtitle(f.Name) {
			continue
		}
		if i >= len(summary.Progress.Files) || !summary.Progress.Files[i].Complete() {
			continue
		}
		if p, ok := summary.FilePath(i); ok {
			out = append(out, p)
		}
	}
	return out
}
