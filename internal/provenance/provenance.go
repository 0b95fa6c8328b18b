// Package provenance records which activities produced which outputs from
// which inputs. Finished activities can be attached to tables as
// attributes or dumped as JSON.
package provenance

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/containerio/internal/monitoring"
	"github.com/banshee-data/containerio/internal/timeutil"
	"github.com/banshee-data/containerio/internal/version"
)

var (
	// ErrNoActivity is returned when finishing with an empty stack.
	ErrNoActivity = errors.New("no active activity")
	// ErrActivityMismatch is returned when finishing an activity that is
	// not the current one.
	ErrActivityMismatch = errors.New("activity mismatch")
)

// AttributePrefix prefixes every key produced by Activity.Attributes.
const AttributePrefix = "provenance."

// Activity is the provenance of one unit of work.
type Activity struct {
	ID        string    `json:"activity_uuid"`
	Name      string    `json:"activity_name"`
	StartTime time.Time `json:"start_time_utc"`
	StopTime  time.Time `json:"stop_time_utc,omitempty"`
	Duration  float64   `json:"duration_min,omitempty"`
	Inputs    []string  `json:"input"`
	Outputs   []string  `json:"output"`

	Version   string `json:"version"`
	GitSHA    string `json:"git_sha"`
	GoVersion string `json:"go_version"`
	Host      string `json:"host"`
	Platform  string `json:"platform"`
}

// Finished reports whether the activity has been stopped.
func (a *Activity) Finished() bool { return !a.StopTime.IsZero() }

// Attributes flattens a into table attribute keys.
func (a *Activity) Attributes() map[string]string {
	attrs := map[string]string{
		AttributePrefix + "activity_uuid": a.ID,
		AttributePrefix + "activity_name": a.Name,
		AttributePrefix + "start":         a.StartTime.UTC().Format(time.RFC3339Nano),
		AttributePrefix + "version":       a.Version,
		AttributePrefix + "git_sha":       a.GitSHA,
		AttributePrefix + "go_version":    a.GoVersion,
		AttributePrefix + "host":          a.Host,
		AttributePrefix + "platform":      a.Platform,
	}
	if a.Finished() {
		attrs[AttributePrefix+"stop"] = a.StopTime.UTC().Format(time.RFC3339Nano)
		attrs[AttributePrefix+"duration_min"] = strconv.FormatFloat(a.Duration, 'g', -1, 64)
	}
	if len(a.Inputs) > 0 {
		attrs[AttributePrefix+"input"] = strings.Join(a.Inputs, ",")
	}
	if len(a.Outputs) > 0 {
		attrs[AttributePrefix+"output"] = strings.Join(a.Outputs, ",")
	}
	return attrs
}

// Tracker keeps a stack of running activities and the list of finished
// ones. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	clock    timeutil.Clock
	active   []*Activity
	finished []*Activity
}

// NewTracker returns a tracker using clock for timestamps. A nil clock
// means the real clock.
func NewTracker(clock timeutil.Clock) *Tracker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Tracker{clock: clock}
}

// Start pushes a new activity onto the stack and returns it.
func (t *Tracker) Start(name string) *Activity {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start(name)
}

func (t *Tracker) start(name string) *Activity {
	host, _ := os.Hostname()
	a := &Activity{
		ID:        uuid.NewString(),
		Name:      name,
		StartTime: t.clock.Now().UTC(),
		Inputs:    []string{},
		Outputs:   []string{},
		Version:   version.Version,
		GitSHA:    version.GitSHA,
		GoVersion: runtime.Version(),
		Host:      host,
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	t.active = append(t.active, a)
	monitoring.Debugf("[provenance] started activity %s (%s)", name, a.ID)
	return a
}

// Current returns the running activity, starting a default one named
// after the executable if none is running.
func (t *Tracker) Current() *Activity {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current()
}

func (t *Tracker) current() *Activity {
	if len(t.active) == 0 {
		monitoring.Logf("[provenance] no activity has been started, starting a default one")
		return t.start(filepath.Base(os.Args[0]))
	}
	return t.active[len(t.active)-1]
}

// AddInput registers an input of the current activity. Local paths are
// made absolute.
func (t *Tracker) AddInput(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.current()
	a.Inputs = append(a.Inputs, absolute(path))
}

// AddOutput registers an output of the current activity.
func (t *Tracker) AddOutput(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.current()
	a.Outputs = append(a.Outputs, absolute(path))
}

// Finish pops the current activity. A non-empty name must match it; on
// mismatch the activity stays running.
func (t *Tracker) Finish(name string) (*Activity, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.active) == 0 {
		return nil, ErrNoActivity
	}
	a := t.active[len(t.active)-1]
	if name != "" && name != a.Name {
		return nil, fmt.Errorf("%w: tried to finish %q but %q is current", ErrActivityMismatch, name, a.Name)
	}
	t.active = t.active[:len(t.active)-1]
	a.StopTime = t.clock.Now().UTC()
	a.Duration = a.StopTime.Sub(a.StartTime).Minutes()
	t.finished = append(t.finished, a)
	monitoring.Debugf("[provenance] finished activity %s", a.Name)
	return a, nil
}

// Run wraps fn in an activity that is finished whatever fn returns.
func (t *Tracker) Run(name string, fn func(*Activity) error) (err error) {
	a := t.Start(name)
	defer func() {
		if _, ferr := t.Finish(name); ferr != nil && err == nil {
			err = ferr
		}
	}()
	return fn(a)
}

// Active returns the names of running activities, outermost first.
func (t *Tracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return names(t.active)
}

// Finished returns the names of finished activities in finishing order.
func (t *Tracker) Finished() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return names(t.finished)
}

// JSON returns the finished activities as a JSON array.
func (t *Tracker) JSON() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := t.finished
	if list == nil {
		list = []*Activity{}
	}
	out, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode provenance: %w", err)
	}
	return out, nil
}

// Clear drops every tracked activity.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = nil
	t.finished = nil
}

func names(as []*Activity) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.Name
	}
	return out
}

func absolute(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
