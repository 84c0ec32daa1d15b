package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/robmorgan/tempomap/effect"
	"github.com/robmorgan/tempomap/rhythm"
	"github.com/robmorgan/tempomap/tempo"
	"github.com/robmorgan/tempomap/utils"
)

const (
	slowBPM = 60
	fastBPM = 180

	progressBarWidth  = 24
	progressFullChar  = "█"
	progressEmptyChar = "░"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).MarginBottom(1)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cellStyle   = lipgloss.NewStyle().Width(10)
	appStyle    = lipgloss.NewStyle().Margin(1, 2, 0, 2)
	barColor    = utils.GetRGBFromString("white")
	beatColor   = utils.GetRGBFromString("grey")
)

func colorStyle(style lipgloss.Style, c colorful.Color) lipgloss.Style {
	return style.Copy().Foreground(lipgloss.Color(c.Hex()))
}

// renderGrid draws one row per grid point: bbt, frame, tempo and meter, colored by tempo
// and meter section.
func renderGrid(tm *tempo.TempoMap, points []tempo.BBTPoint, accent *effect.Effect) string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(fmt.Sprintf("Tempo map @ %d Hz: %d tempos, %d meters", tm.FrameRate(), tm.NTempos(), tm.NMeters())))
	s.WriteString("\n")

	meters := make(map[*tempo.MeterSection]int)
	for _, p := range points {
		n, ok := meters[p.Meter]
		if !ok {
			n = len(meters)
			meters[p.Meter] = n
		}

		marker := beatColor
		if p.IsBar() {
			marker = barColor
		}
		marker = utils.Dim(marker, accent.Update(float64(p.Beat-1), p.Meter.DivisionsPerBar()))

		bpm := p.Tempo.BeatsPerMinute()
		row := lipgloss.JoinHorizontal(lipgloss.Top,
			colorStyle(cellStyle, marker).Render(p.BBT().String()),
			cellStyle.Render(fmt.Sprintf("%d", p.Frame)),
			colorStyle(cellStyle, utils.TempoColor(bpm, slowBPM, fastBPM)).Render(fmt.Sprintf("%.2f", bpm)),
			colorStyle(cellStyle, utils.MeterColor(n)).Render(p.Meter.Meter.String()),
		)
		s.WriteString(row)
		s.WriteString("\n")
	}
	if len(points) == 0 {
		s.WriteString(helpStyle.Render("(no beats in range)"))
		s.WriteString("\n")
	}
	return appStyle.Render(s.String())
}

func renderClick(s rhythm.Snapshot) string {
	c := beatColor
	if s.IsDownBeat() {
		c = barColor
	}
	if s.IsPhraseStart() && s.IsDownBeat() {
		c = utils.GetRGBFromString("red")
	}
	return colorStyle(lipgloss.NewStyle(), c).Render(fmt.Sprintf("%-10s %s %.2f bpm", s.GetMarker(), phraseProgress(s), s.GetTempo().BeatsPerMinute()))
}

// phraseProgress draws how far into its phrase the snapshot's bar is.
func phraseProgress(s rhythm.Snapshot) string {
	full := utils.GetFadeValue(progressBarWidth, s.GetBarWithinPhrase(), s.GetBarsPerPhrase()+1)
	return strings.Repeat(progressFullChar, full) + strings.Repeat(progressEmptyChar, progressBarWidth-full)
}
