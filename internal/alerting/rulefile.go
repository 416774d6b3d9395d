package alerting

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ruleFileDoc is the on-disk shape of a rule file.
type ruleFileDoc struct {
	Rules []ruleDoc `yaml:"rules"`
}

type ruleDoc struct {
	ID              string            `yaml:"id"`
	Name            string            `yaml:"name"`
	Enabled         *bool             `yaml:"enabled"`
	Conditions      []conditionDoc    `yaml:"conditions"`
	Severity        string            `yaml:"severity"`
	CooldownMinutes int               `yaml:"cooldown_minutes"`
	Channels        []string          `yaml:"channels"`
	Tags            map[string]string `yaml:"tags"`
}

type conditionDoc struct {
	Metric        string  `yaml:"metric"`
	Operator      string  `yaml:"operator"`
	Threshold     float64 `yaml:"threshold"`
	WindowMinutes int     `yaml:"window_minutes"`
	Aggregation   string  `yaml:"aggregation"`
}

// LoadRulesFile parses and validates a YAML rule file. Rules default to
// enabled and severity defaults to warning when unset.
func LoadRulesFile(path string) ([]Rule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var doc ruleFileDoc
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	rules := make([]Rule, 0, len(doc.Rules))
	for i, rd := range doc.Rules {
		r, err := ruleFromDoc(rd)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, rd.Name, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func ruleFromDoc(rd ruleDoc) (Rule, error) {
	r := Rule{
		ID:       rd.ID,
		Name:     rd.Name,
		Enabled:  true,
		Severity: SeverityWarning,
		Cooldown: time.Duration(rd.CooldownMinutes) * time.Minute,
		Channels: rd.Channels,
		Tags:     rd.Tags,
	}
	if rd.Enabled != nil {
		r.Enabled = *rd.Enabled
	}
	if rd.Severity != "" {
		sev := Severity(rd.Severity)
		switch sev {
		case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
			r.Severity = sev
		default:
			return Rule{}, fmt.Errorf("unknown severity %q", rd.Severity)
		}
	}

	for _, cd := range rd.Conditions {
		metric, err := ParseMetric(cd.Metric)
		if err != nil {
			return Rule{}, err
		}
		op, err := ParseOperator(cd.Operator)
		if err != nil {
			return Rule{}, err
		}
		agg, err := ParseAggregation(cd.Aggregation)
		if err != nil {
			return Rule{}, err
		}
		r.Conditions = append(r.Conditions, Condition{
			Metric:      metric,
			Operator:    op,
			Threshold:   cd.Threshold,
			Window:      time.Duration(cd.WindowMinutes) * time.Minute,
			Aggregation: agg,
		})
	}

	if err := r.Validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// reloadDebounce absorbs the burst of events editors emit on save.
const reloadDebounce = 250 * time.Millisecond

// RuleWatcher reloads the engine's rule set whenever the rule file
// changes. The parent directory is watched rather than the file itself so
// atomic-rename saves are picked up.
type RuleWatcher struct {
	path   string
	engine *Engine
	logger *slog.Logger

	timerMu sync.Mutex
	timer   *time.Timer

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewRuleWatcher loads the rule file into the engine and returns a watcher
// for subsequent changes.
func NewRuleWatcher(path string, engine *Engine, logger *slog.Logger) (*RuleWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rules, err := LoadRulesFile(path)
	if err != nil {
		return nil, err
	}
	if err := engine.ReplaceRules(rules); err != nil {
		return nil, err
	}
	logger.Info("alert rules loaded", slog.String("path", path), slog.Int("count", len(rules)))

	return &RuleWatcher{
		path:   path,
		engine: engine,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins watching for rule file changes.
func (w *RuleWatcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create rule watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch rules dir: %w", err)
	}

	base := filepath.Base(w.path)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer watcher.Close()

		for {
			select {
			case <-w.stopCh:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.EqualFold(filepath.Base(ev.Name), base) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					w.scheduleReload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("rule watcher error", slog.Any("error", err))
			}
		}
	}()
	return nil
}

// Stop halts the watcher and any pending reload.
func (w *RuleWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.timerMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timerMu.Unlock()
	w.wg.Wait()
}

func (w *RuleWatcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, w.reload)
}

// reload re-parses the file and swaps the rule set. A file that fails to
// parse leaves the current rules in place.
func (w *RuleWatcher) reload() {
	rules, err := LoadRulesFile(w.path)
	if err != nil {
		w.logger.Warn("rule file rejected; keeping current rules",
			slog.String("path", w.path), slog.Any("error", err))
		return
	}
	if err := w.engine.ReplaceRules(rules); err != nil {
		w.logger.Warn("rule file rejected; keeping current rules",
			slog.String("path", w.path), slog.Any("error", err))
		return
	}
	w.logger.Info("alert rules reloaded", slog.String("path", w.path), slog.Int("count", len(rules)))
}
