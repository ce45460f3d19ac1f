package notify

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"timelogger/pkg/logging"
)

// Template names known to the resolver.
const (
	TemplateMeetingNotification = "meeting_notification"
	TemplateDefault             = "default"
)

// Loader fetches raw template content from a backing source.
type Loader interface {
	Load(name string) (string, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(name string) (string, error)

func (f LoaderFunc) Load(name string) (string, error) { return f(name) }

// NewFileLoader returns a Loader reading <dir>/<name>.html.
func NewFileLoader(dir string) Loader {
	return LoaderFunc(func(name string) (string, error) {
		b, err := os.ReadFile(filepath.Join(dir, name+".html"))
		if err != nil {
			return "", err
		}
		return string(b), nil
	})
}

var templateFuncs = template.FuncMap{
	"orNotProvided": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "Not provided"
		}
		return s
	},
	"formatHours": func(h float64) string {
		if h == 0 {
			return "Not provided"
		}
		return strconv.FormatFloat(h, 'f', -1, 64)
	},
}

// Resolver resolves template names to parsed templates. Resolution never
// fails: a missing or unparseable source downgrades to the built-in fallback
// for that name, or the generic default. Resolved templates are cached for
// the life of the process.
type Resolver struct {
	loader Loader
	logger logging.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]*template.Template
}

// NewResolver creates a Resolver. loader may be nil, in which case only the
// built-in fallbacks are served.
func NewResolver(loader Loader, logger logging.Logger) *Resolver {
	return &Resolver{
		loader: loader,
		logger: logger,
		cache:  make(map[string]*template.Template),
	}
}

// Resolve returns the template for name. Concurrent first requests for the
// same name share a single load.
func (r *Resolver) Resolve(name string) *template.Template {
	r.mu.RLock()
	tpl, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return tpl
	}

	v, _, _ := r.group.Do(name, func() (interface{}, error) {
		tpl := r.load(name)
		r.mu.Lock()
		r.cache[name] = tpl
		r.mu.Unlock()
		return tpl, nil
	})
	return v.(*template.Template)
}

func (r *Resolver) load(name string) *template.Template {
	if r.loader != nil {
		content, err := r.loader.Load(name)
		if err != nil {
			r.logger.WithError(err).WithField("template", name).Debug("Template source unavailable, using fallback")
		} else {
			tpl, perr := template.New(name).Funcs(templateFuncs).Parse(content)
			if perr == nil {
				return tpl
			}
			r.logger.WithError(perr).WithField("template", name).Warn("Template source failed to parse, using fallback")
		}
	}
	return fallbackTemplate(name)
}

func fallbackTemplate(name string) *template.Template {
	if tpl, ok := fallbackTemplates[name]; ok {
		return tpl
	}
	return fallbackTemplates[TemplateDefault]
}

var fallbackTemplates = map[string]*template.Template{
	TemplateMeetingNotification: mustParse(TemplateMeetingNotification, meetingNotificationFallback),
	TemplateDefault:             mustParse(TemplateDefault, defaultFallback),
}

func mustParse(name, src string) *template.Template {
	tpl, err := template.New(name).Funcs(templateFuncs).Parse(src)
	if err != nil {
		panic(fmt.Sprintf("notify: invalid built-in template %s: %v", name, err))
	}
	return tpl
}

const meetingNotificationFallback = `<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
    <div style="background-color: #f8f9fa; padding: 20px; border-bottom: 3px solid #007bff;">
        <h2 style="color: #007bff; margin: 0;">New Meeting Logged</h2>
    </div>
    <div style="padding: 20px;">
        <p>A new meeting has been processed and logged:</p>
        <table style="width: 100%; border-collapse: collapse; margin-bottom: 20px;">
            <tr>
                <th style="text-align: left; padding: 8px; background-color: #f2f2f2; border: 1px solid #ddd;">Field</th>
                <th style="text-align: left; padding: 8px; background-color: #f2f2f2; border: 1px solid #ddd;">Value</th>
            </tr>
            <tr>
                <td style="padding: 8px; border: 1px solid #ddd;"><strong>Customer:</strong></td>
                <td style="padding: 8px; border: 1px solid #ddd;">{{orNotProvided .CustomerName}}</td>
            </tr>
            <tr>
                <td style="padding: 8px; border: 1px solid #ddd;"><strong>Meeting Date:</strong></td>
                <td style="padding: 8px; border: 1px solid #ddd;">{{orNotProvided .MeetingDate}}</td>
            </tr>
            <tr>
                <td style="padding: 8px; border: 1px solid #ddd;"><strong>Start Time:</strong></td>
                <td style="padding: 8px; border: 1px solid #ddd;">{{orNotProvided .StartTime}}</td>
            </tr>
            <tr>
                <td style="padding: 8px; border: 1px solid #ddd;"><strong>End Time:</strong></td>
                <td style="padding: 8px; border: 1px solid #ddd;">{{orNotProvided .EndTime}}</td>
            </tr>
            <tr>
                <td style="padding: 8px; border: 1px solid #ddd;"><strong>Total Hours:</strong></td>
                <td style="padding: 8px; border: 1px solid #ddd;">{{formatHours .TotalHours}}</td>
            </tr>
        </table>

        <div style="background-color: #f8f9fa; padding: 10px; border-left: 3px solid #6c757d; margin-bottom: 20px;">
            <h3 style="margin-top: 0;">Notes:</h3>
            <p>{{orNotProvided .Notes}}</p>
        </div>

        <hr style="border: 0; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #6c757d; font-size: 12px;">This is an automated notification from TimeLogger.</p>
    </div>
</body>
</html>`

const defaultFallback = `<html><body><p>Meeting data from {{orNotProvided .CustomerName}} on {{orNotProvided .MeetingDate}}</p></body></html>`
