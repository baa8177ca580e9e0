// package formatter renders vibe presets and analysis reports for the terminal
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/nkoorts/vibesort/internal/models"
	"github.com/nkoorts/vibesort/internal/vibes"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	name  lipgloss.Style
	rule  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, n, r, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		name:  NewBold(n),
		rule:  NewStyle(r),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// FormatVibes renders the vibe preset catalog as styled terminal output.
func FormatVibes(catalog []vibes.Vibe) string {
	var buf strings.Builder

	buf.WriteString(styles.title.Render("Available vibes"))
	buf.WriteString("\n")

	for _, vibe := range catalog {
		buf.WriteString(styles.name.Render(vibe.Name))
		buf.WriteString("\n")
		buf.WriteString("  " + styles.help.Render(vibe.Description))
		buf.WriteString("\n")
		for _, rule := range vibe.Rules {
			buf.WriteString("  " + styles.rule.Render(rule.String()))
			buf.WriteString("\n")
		}
		buf.WriteString("\n")
	}

	return strings.TrimRight(buf.String(), "\n") + "\n"
}

// FormatReport renders an analysis report summary as styled terminal output.
func FormatReport(report *models.AnalysisReport) string {
	var buf strings.Builder

	m := report.Metrics
	buf.WriteString(styles.title.Render("Analysis"))
	buf.WriteString("\n")
	buf.WriteString(fmt.Sprintf("%s %d (%d with features)\n", styles.name.Render("Tracks:"), m.TotalTracks, m.TracksWithFeatures))
	buf.WriteString(fmt.Sprintf("%s %d artists, %d genres\n", styles.name.Render("Spread:"), m.UniqueArtists, m.TotalGenres))
	buf.WriteString(fmt.Sprintf("%s energy %.2f, valence %.2f, danceability %.2f, tempo %.1f\n",
		styles.name.Render("Averages:"), m.AvgEnergy, m.AvgValence, m.AvgDanceability, m.AvgTempo))

	if len(report.GenreCounts) > 0 {
		buf.WriteString(styles.name.Render("Top genres:"))
		buf.WriteString("\n")
		limit := min(len(report.GenreCounts), 10)
		for _, gc := range report.GenreCounts[:limit] {
			buf.WriteString("  " + styles.rule.Render(fmt.Sprintf("%s (%d)", gc.Genre, gc.Count)))
			buf.WriteString("\n")
		}
	}

	return buf.String()
}

// ExportTracksToCSV converts analyzed tracks to CSV with columns:
// ID, Name, Artists, Genres, Energy, Valence, Danceability, Tempo
func ExportTracksToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Name", "Artists", "Genres", "Energy", "Valence", "Danceability", "Tempo"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		energy, valence, dance, tempo := "", "", "", ""
		if f := track.Features; f != nil {
			energy = strconv.FormatFloat(f.Energy, 'f', -1, 64)
			valence = strconv.FormatFloat(f.Valence, 'f', -1, 64)
			dance = strconv.FormatFloat(f.Danceability, 'f', -1, 64)
			tempo = strconv.FormatFloat(f.Tempo, 'f', -1, 64)
		}

		record := []string{
			track.ID,
			track.Name,
			strings.Join(track.Artists, "; "),
			strings.Join(track.Genres, "; "),
			energy,
			valence,
			dance,
			tempo,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}
