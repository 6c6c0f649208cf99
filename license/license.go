// Package license asks users to accept a driver's license before the driver
// is first loaded, and remembers the answer.
package license

import (
	"context"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/dpup/driverhub/errors"
	"github.com/dpup/driverhub/logging"
	"github.com/dpup/driverhub/settings"
	"github.com/spf13/afero"
	"google.golang.org/grpc/codes"
)

// ErrLicenseDeclined is returned when the user does not accept a license.
var ErrLicenseDeclined = errors.NewC("license not accepted", codes.PermissionDenied)

// Prompter presents a license to the user and reports whether it was
// accepted.
type Prompter interface {
	Present(ctx context.Context, title, text string) (bool, error)
}

// PrompterFunc adapts a function to a Prompter.
type PrompterFunc func(ctx context.Context, title, text string) (bool, error)

func (f PrompterFunc) Present(ctx context.Context, title, text string) (bool, error) {
	return f(ctx, title, text)
}

var (
	// Decline refuses every license. It is the default for headless use.
	Decline Prompter = PrompterFunc(func(context.Context, string, string) (bool, error) { return false, nil })

	// Accept accepts every license.
	Accept Prompter = PrompterFunc(func(context.Context, string, string) (bool, error) { return true, nil })
)

// Records stores license acceptances. *settings.Preferences implements it.
type Records interface {
	LicenseAcceptance(ctx context.Context, driverID string) (*settings.Acceptance, bool, error)
	RecordLicense(ctx context.Context, a settings.Acceptance) error
}

// Subject is the driver a license is checked for.
type Subject struct {
	ID              string
	FullName        string
	LicenseRequired bool

	// Text is an inline license. When empty the first readable file of
	// LicenseFiles is used.
	Text         string
	LicenseFiles []string
}

// Gate checks licenses.
type Gate struct {
	records  Records
	prompter Prompter
	fs       afero.Fs
	now      func() time.Time
	actor    string
}

// Option configures a Gate.
type Option func(*Gate)

// WithFs sets the filesystem license files are read from.
func WithFs(fs afero.Fs) Option {
	return func(g *Gate) { g.fs = fs }
}

// WithClock sets the time source for acceptance records.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithActor sets the name stored with acceptances. Defaults to the OS user.
func WithActor(actor string) Option {
	return func(g *Gate) {
		if actor != "" {
			g.actor = actor
		}
	}
}

// NewGate returns a gate recording acceptances in records and asking
// prompter. A nil prompter declines everything.
func NewGate(records Records, prompter Prompter, opts ...Option) *Gate {
	if prompter == nil {
		prompter = Decline
	}
	g := &Gate{
		records:  records,
		prompter: prompter,
		fs:       afero.NewOsFs(),
		now:      time.Now,
		actor:    currentUser(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Check returns nil when s may be loaded: no license is required, no license
// text exists, the license was accepted before, or the user accepts it now.
func (g *Gate) Check(ctx context.Context, s Subject) error {
	if !s.LicenseRequired {
		return nil
	}
	text := s.Text
	if text == "" {
		text = g.readLicense(ctx, s.LicenseFiles)
	}
	if strings.TrimSpace(text) == "" {
		logging.Infow(ctx, "driver requires a license but none was found", "driver", s.FullName)
		return nil
	}

	if g.records != nil {
		_, ok, err := g.records.LicenseAcceptance(ctx, s.ID)
		if err != nil {
			logging.Warnw(ctx, "failed to read license acceptance", "driver", s.ID, "error", err)
		}
		if ok {
			return nil
		}
	}

	accepted, err := g.prompter.Present(ctx, "You have to accept license of '"+s.FullName+"' to continue", text)
	if err != nil {
		return errors.WrapPrefix(err, "license prompt failed", 0)
	}
	if !accepted {
		return errors.Mark(ErrLicenseDeclined, 0).WithCause(errors.Errorf("license of %s was declined", s.FullName))
	}

	if g.records != nil {
		a := settings.Acceptance{DriverID: s.ID, AcceptedAt: g.now().UTC(), Actor: g.actor}
		if err := g.records.RecordLicense(ctx, a); err != nil {
			logging.Warnw(ctx, "failed to record license acceptance", "driver", s.ID, "error", err)
		}
	}
	logging.Infow(ctx, "license accepted", "driver", s.FullName, "actor", g.actor)
	return nil
}

func (g *Gate) readLicense(ctx context.Context, files []string) string {
	for _, f := range files {
		b, err := afero.ReadFile(g.fs, f)
		if err != nil {
			logging.Debugw(ctx, "license file unreadable", "path", f, "error", err)
			continue
		}
		return string(b)
	}
	return ""
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
