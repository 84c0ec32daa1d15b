package tempo

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/gruntwork-io/go-commons/errors"
	"github.com/sirupsen/logrus"
)

const (
	// CurrentStateVersion is the version State writes.
	CurrentStateVersion = 5000
	// MinStateVersion is the oldest version SetState reads.
	MinStateVersion = 2000

	// from this version on tempo sections carry an explicit note-type
	noteTypeStateVersion = 3000
)

// stateNode is a generic XML element: the map's format is a flat list of attributes per
// section, written in a fixed order.
type stateNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr  `xml:",any,attr"`
	Children []stateNode `xml:",any"`
}

func (n *stateNode) add(name, value string) {
	n.Attrs = append(n.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

func (n *stateNode) get(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func formatBool(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// State serializes the map.
func (tm *TempoMap) State() ([]byte, error) {
	tm.lock.RLock()
	root := tm.metrics.state(tm.length)
	tm.lock.RUnlock()

	data, err := xml.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, errors.WithStackTrace(err)
	}
	return data, nil
}

func (m *metrics) state(length int64) stateNode {
	root := stateNode{XMLName: xml.Name{Local: "TempoMap"}}
	root.add("frame-rate", strconv.FormatInt(m.frameRate, 10))
	root.add("length", strconv.FormatInt(length, 10))

	for _, s := range m.sections {
		switch section := s.(type) {
		case *TempoSection:
			root.Children = append(root.Children, tempoState(section))
		case *MeterSection:
			root.Children = append(root.Children, meterState(section))
		}
	}
	return root
}

func tempoState(ts *TempoSection) stateNode {
	n := stateNode{XMLName: xml.Name{Local: "Tempo"}}
	n.add("beats-per-minute", formatFloat(ts.beatsPerMinute))
	n.add("note-type", formatFloat(ts.noteType))
	addCoordinate(&n, &ts.MetricSection)
	n.add("movable", formatBool(ts.movable))
	n.add("active", formatBool(ts.active))
	n.add("type", ts.tempoType.String())
	n.add("lock-style", ts.lockStyle.String())
	return n
}

func meterState(ms *MeterSection) stateNode {
	n := stateNode{XMLName: xml.Name{Local: "Meter"}}
	n.add("divisions-per-bar", formatFloat(ms.divisionsPerBar))
	n.add("note-type", formatFloat(ms.noteDivisor))
	n.add("beat", formatFloat(ms.beat))
	n.add("bbt", ms.bbt.String())
	addCoordinate(&n, &ms.MetricSection)
	n.add("movable", formatBool(ms.movable))
	n.add("lock-style", ms.lockStyle.String())
	return n
}

func addCoordinate(n *stateNode, s *MetricSection) {
	if s.lockStyle == MusicTime {
		n.add("pulse", formatFloat(s.pulse))
	} else {
		n.add("frame", strconv.FormatInt(s.frame, 10))
	}
}

// SetState replaces the map with a serialized one written at the given version. Tempos
// from sessions that anchored them to a bbt are converted to pulses through the loaded
// meters. On error the map is left as it was.
func (tm *TempoMap) SetState(data []byte, version int) error {
	if version < MinStateVersion || version > CurrentStateVersion {
		return errors.WithStackTraceAndPrefix(ErrUnsupportedVersion, "version %d", version)
	}

	var root stateNode
	if err := xml.Unmarshal(data, &root); err != nil {
		return errors.WithStackTraceAndPrefix(ErrInvalidState, "%s", err)
	}
	if root.XMLName.Local != "TempoMap" {
		return errors.WithStackTraceAndPrefix(ErrInvalidState, "root element <%s>", root.XMLName.Local)
	}

	frameRate := tm.FrameRate()
	if v, ok := root.get("frame-rate"); ok {
		if sr, err := strconv.ParseInt(v, 10, 64); err != nil || sr <= 0 {
			return errors.WithStackTraceAndPrefix(ErrInvalidState, "frame-rate %q", v)
		} else if sr != frameRate {
			tm.log.WithFields(logrus.Fields{"saved": sr, "current": frameRate}).
				Warn("tempo map was saved at a different frame rate; keeping frame positions")
		}
	}
	length := int64(-1)
	if v, ok := root.get("length"); ok {
		l, err := strconv.ParseInt(v, 10, 64)
		if err != nil || l < 0 {
			return errors.WithStackTraceAndPrefix(ErrInvalidState, "length %q", v)
		}
		length = l
	}

	m := &metrics{frameRate: frameRate}
	var legacy []*TempoSection
	for i := range root.Children {
		child := &root.Children[i]
		switch child.XMLName.Local {
		case "Tempo":
			ts, err := parseTempo(child, version)
			if err != nil {
				return err
			}
			if ts.hasLegacyBBT && ts.movable {
				legacy = append(legacy, ts)
				continue
			}
			m.sections = append(m.sections, ts)
		case "Meter":
			ms, err := parseMeter(child)
			if err != nil {
				return err
			}
			m.sections = append(m.sections, ms)
		default:
			tm.log.WithField("element", child.XMLName.Local).Warn("ignoring unknown tempo map element")
		}
	}

	if err := checkInitialSections(m.sections, legacy); err != nil {
		return err
	}
	if len(legacy) > 0 {
		if err := m.upgradeLegacyTempos(legacy); err != nil {
			return err
		}
	} else if err := m.solve(); err != nil {
		return errors.WithStackTraceAndPrefix(ErrInvalidState, "%s", err)
	}

	tm.lock.Lock()
	tm.metrics = m
	if length >= 0 {
		tm.length = length
	}
	tm.lock.Unlock()

	tm.log.WithFields(logrus.Fields{"version": version, "tempos": m.nTempos(), "meters": len(m.meters)}).Info("loaded tempo map")
	tm.MetricPositionChanged.Emit()
	return nil
}

// upgradeLegacyTempos solves the map without the bbt-anchored tempos, converts each of
// their positions to a pulse and solves again with them music-locked.
func (m *metrics) upgradeLegacyTempos(legacy []*TempoSection) error {
	if err := m.solve(); err != nil {
		return errors.WithStackTraceAndPrefix(ErrInvalidState, "%s", err)
	}

	for _, ts := range legacy {
		pulse := m.pulseAtBeat(m.bbtToBeats(ts.legacyBBT))
		ts.pulse = pulse
		ts.frame = m.frameAtPulse(pulse)
		ts.lockStyle = MusicTime
		m.sections = append(m.sections, ts)
	}
	m.sort()
	if err := m.solve(); err != nil {
		return errors.WithStackTraceAndPrefix(ErrInvalidState, "%s", err)
	}
	return nil
}

// checkInitialSections makes sure there is exactly one immovable tempo and one immovable meter.
func checkInitialSections(sections []Section, legacy []*TempoSection) error {
	tempos, meters := 0, 0
	for _, s := range sections {
		if s.Movable() {
			continue
		}
		switch s.(type) {
		case *TempoSection:
			tempos++
		case *MeterSection:
			meters++
		}
	}
	for _, ts := range legacy {
		if !ts.movable {
			tempos++
		}
	}

	if tempos > 1 || meters > 1 {
		return errors.WithStackTraceAndPrefix(ErrInvalidState, "duplicate initial sections (%d tempos, %d meters)", tempos, meters)
	}
	if tempos == 0 || meters == 0 {
		return errors.WithStackTraceAndPrefix(ErrInvalidState, "missing initial tempo or meter")
	}
	return nil
}

func parseTempo(n *stateNode, version int) (*TempoSection, error) {
	ts := &TempoSection{active: true, tempoType: Constant}

	bpm, err := requireFloat(n, "beats-per-minute")
	if err != nil {
		return nil, err
	}
	noteType := 4.0
	if version >= noteTypeStateVersion {
		if noteType, err = requireFloat(n, "note-type"); err != nil {
			return nil, err
		}
	} else if v, ok := n.get("note-type"); ok {
		if noteType, err = parseFloat("note-type", v); err != nil {
			return nil, err
		}
	}
	ts.Tempo = NewTempo(bpm, noteType)
	if !ts.Tempo.valid() {
		return nil, errors.WithStackTraceAndPrefix(ErrInvalidState, "tempo %s", ts.Tempo)
	}

	if ts.movable, err = requireBool(n, "movable"); err != nil {
		return nil, err
	}
	if v, ok := n.get("active"); ok {
		if ts.active, err = parseBool("active", v); err != nil {
			return nil, err
		}
	}
	if !ts.movable && !ts.active {
		return nil, errors.WithStackTraceAndPrefix(ErrInvalidState, "initial tempo is inactive")
	}
	if v, ok := n.get("type"); ok {
		switch v {
		case "Constant":
			ts.tempoType = Constant
		case "Ramp", "Ramped":
			ts.tempoType = Ramp
		default:
			return nil, errors.WithStackTraceAndPrefix(ErrInvalidState, "tempo type %q", v)
		}
	}

	bbt, legacy := n.get("bbt")
	if !legacy {
		bbt, legacy = n.get("start")
	}
	hasCoordinate, err := parseCoordinate(n, &ts.MetricSection)
	if err != nil {
		return nil, err
	}
	if !hasCoordinate {
		if !legacy {
			return nil, errors.WithStackTraceAndPrefix(ErrInvalidState, "tempo without pulse, frame or bbt")
		}
		if ts.legacyBBT, err = parseBBT("bbt", bbt); err != nil {
			return nil, err
		}
		ts.hasLegacyBBT = true
		ts.lockStyle = MusicTime
		if !ts.movable {
			ts.lockStyle = AudioTime
		}
	}
	return ts, nil
}

func parseMeter(n *stateNode) (*MeterSection, error) {
	ms := &MeterSection{}

	dpb, err := requireFloat(n, "divisions-per-bar")
	if err != nil {
		return nil, err
	}
	noteDivisor, err := requireFloat(n, "note-type")
	if err != nil {
		return nil, err
	}
	ms.Meter = NewMeter(dpb, noteDivisor)
	if !ms.Meter.valid() {
		return nil, errors.WithStackTraceAndPrefix(ErrInvalidState, "meter %s", ms.Meter)
	}
	if ms.movable, err = requireBool(n, "movable"); err != nil {
		return nil, err
	}

	v, ok := n.get("bbt")
	if !ok {
		v, ok = n.get("start")
	}
	if !ok {
		return nil, errors.WithStackTraceAndPrefix(ErrInvalidState, "meter without bbt")
	}
	if ms.bbt, err = parseBBT("bbt", v); err != nil {
		return nil, err
	}
	if !ms.bbt.IsBar() {
		return nil, errors.WithStackTraceAndPrefix(ErrInvalidState, "meter bbt %s is not on a bar", ms.bbt)
	}
	if v, ok := n.get("beat"); ok {
		if ms.beat, err = parseFloat("beat", v); err != nil {
			return nil, err
		}
	}

	hasCoordinate, err := parseCoordinate(n, &ms.MetricSection)
	if err != nil {
		return nil, err
	}
	if !hasCoordinate {
		ms.lockStyle = MusicTime
	}
	return ms, nil
}

// parseCoordinate reads pulse or frame, plus lock-style, into s. It reports whether a
// coordinate was present.
func parseCoordinate(n *stateNode, s *MetricSection) (bool, error) {
	pv, hasPulse := n.get("pulse")
	fv, hasFrame := n.get("frame")
	if hasPulse && hasFrame {
		return false, errors.WithStackTraceAndPrefix(ErrInvalidState, "<%s> has both pulse and frame", n.XMLName.Local)
	}

	var err error
	switch {
	case hasPulse:
		if s.pulse, err = parseFloat("pulse", pv); err != nil {
			return false, err
		}
		s.lockStyle = MusicTime
	case hasFrame:
		if s.frame, err = strconv.ParseInt(fv, 10, 64); err != nil {
			return false, errors.WithStackTraceAndPrefix(ErrInvalidState, "frame %q", fv)
		}
		if s.frame < 0 {
			return false, errors.WithStackTraceAndPrefix(ErrInvalidState, "negative frame %d", s.frame)
		}
		s.lockStyle = AudioTime
	}

	if v, ok := n.get("lock-style"); ok {
		var lock PositionLockStyle
		switch v {
		case "AudioTime":
			lock = AudioTime
		case "MusicTime":
			lock = MusicTime
		default:
			return false, errors.WithStackTraceAndPrefix(ErrInvalidState, "lock-style %q", v)
		}
		if (hasPulse || hasFrame) && lock != s.lockStyle {
			return false, errors.WithStackTraceAndPrefix(ErrInvalidState, "lock-style %s conflicts with its position", v)
		}
		s.lockStyle = lock
	}
	return hasPulse || hasFrame, nil
}

func requireFloat(n *stateNode, name string) (float64, error) {
	v, ok := n.get(name)
	if !ok {
		return 0, errors.WithStackTraceAndPrefix(ErrInvalidState, "<%s> missing %s", n.XMLName.Local, name)
	}
	return parseFloat(name, v)
}

func requireBool(n *stateNode, name string) (bool, error) {
	v, ok := n.get(name)
	if !ok {
		return false, errors.WithStackTraceAndPrefix(ErrInvalidState, "<%s> missing %s", n.XMLName.Local, name)
	}
	return parseBool(name, v)
}

func parseFloat(name, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, errors.WithStackTraceAndPrefix(ErrInvalidState, "%s %q", name, v)
	}
	if f < 0 {
		return 0, errors.WithStackTraceAndPrefix(ErrInvalidState, "negative %s %g", name, f)
	}
	if !validPositive(f) && f != 0 {
		return 0, errors.WithStackTraceAndPrefix(ErrInvalidState, "%s %q", name, v)
	}
	return f, nil
}

func parseBool(name, v string) (bool, error) {
	switch strings.ToLower(v) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	}
	return false, errors.WithStackTraceAndPrefix(ErrInvalidState, "%s %q", name, v)
}

// parseBBT reads "bars|beats|ticks".
func parseBBT(name, v string) (BBT, error) {
	parts := strings.Split(v, "|")
	if len(parts) != 3 {
		return BBT{}, errors.WithStackTraceAndPrefix(ErrInvalidState, "%s %q", name, v)
	}
	var vals [3]int32
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 32)
		if err != nil || n < 0 {
			return BBT{}, errors.WithStackTraceAndPrefix(ErrInvalidState, "%s %q", name, v)
		}
		vals[i] = int32(n)
	}
	bbt := BBT{Bars: vals[0], Beats: vals[1], Ticks: vals[2]}
	if bbt.Bars < 1 || bbt.Beats < 1 {
		return BBT{}, errors.WithStackTraceAndPrefix(ErrInvalidState, "%s %q", name, v)
	}
	return bbt, nil
}
