package trackers

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
	"github.com/samuelfneumann/onpolicy/experiment/tracker"
)

func track(t tracker.Tracker) tracker.Data {
	want := tracker.Data{
		"rollout/episodic_return": {{Step: 10, Value: 21}, {Step: 30, Value: 9}},
		"train/clipfrac":          {{Step: 32, Value: 0.125}},
	}
	for name, points := range want {
		for _, p := range points {
			t.Track(name, p.Value, p.Step)
		}
	}
	return want
}

func TestSeries(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "series.bin")
	s := NewSeries(filename)
	want := track(s)

	if !reflect.DeepEqual(s.Data(), want) {
		t.Errorf("want %v, have %v", want, s.Data())
	}
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	loaded, err := tracker.LoadData(filename)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded, want) {
		t.Errorf("want %v, have %v", want, loaded)
	}

	if err := NewSeries("").Save(); err != nil {
		t.Errorf("in-memory series should not save: %v", err)
	}
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := NewSQLite(path, "run-a")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	want := track(s)
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}

	// A second run in the same database is kept separate
	other, err := NewSQLite(path, "run-b")
	if err != nil {
		t.Fatal(err)
	}
	defer other.Close()
	other.Track("train/clipfrac", 1, 1)
	if err := other.Save(); err != nil {
		t.Fatal(err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(loaded, want) {
		t.Errorf("want %v, have %v", want, loaded)
	}

	// Saving again does not duplicate rows
	if err := s.Save(); err != nil {
		t.Fatal(err)
	}
	loaded, _ = s.Load()
	if len(loaded["rollout/episodic_return"]) != 2 {
		t.Errorf("rows duplicated on save: %v", loaded)
	}
}

func TestPlot(t *testing.T) {
	p := NewPlot(t.TempDir())
	track(p)
	if err := p.Save(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"rollout/episodic_return",
		"train/clipfrac"} {
		if _, err := os.Stat(p.Filename(name)); err != nil {
			t.Errorf("no plot for %v: %v", name, err)
		}
	}
	if filepath.Base(p.Filename("train/approx_kl")) != "train_approx_kl.png" {
		t.Errorf("unexpected filename %v", p.Filename("train/approx_kl"))
	}
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(zerolog.New(&buf), zerolog.InfoLevel)
	l.Track("rollout/SPS", 512, 64)

	var event map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatal(err)
	}
	if event["metric"] != "rollout/SPS" || event["value"] != 512.0 ||
		event["step"] != 64.0 || event["component"] != "tracker" {
		t.Errorf("unexpected event %v", event)
	}
	if err := l.Save(); err != nil {
		t.Error(err)
	}
}
