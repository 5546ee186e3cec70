package config

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cognicore/expert/pkg/expert/ruleio"
	"github.com/cognicore/expert/pkg/expert/rules"
)

// Loader loads the session file and the rule text it points to
type Loader struct {
	ConfigPath string // optional YAML session file
	RulesPath  string // overrides the session's rules path; file or http(s) URL
	HTTPClient *http.Client
}

// Components holds everything needed to start a session
type Components struct {
	Session *Session
	Rules   rules.Set
	Report  rules.Report
}

// Load reads the configuration, applies environment overrides and parses the rules
func (l *Loader) Load(ctx context.Context) (*Components, error) {
	sess := Default()
	if l.ConfigPath != "" {
		loaded, err := LoadSession(l.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		sess = loaded
	}

	if err := sess.ApplyEnv(); err != nil {
		return nil, err
	}
	if l.RulesPath != "" {
		sess.RulesPath = l.RulesPath
	}
	if err := sess.Validate(); err != nil {
		return nil, err
	}

	comp := &Components{Session: sess}

	// A session without a rules source starts with an empty rule set
	if sess.RulesPath != "" {
		text, err := ruleio.Load(ctx, l.HTTPClient, sess.RulesPath)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		comp.Rules, comp.Report = rules.ParseText(text)
	}

	return comp, nil
}
