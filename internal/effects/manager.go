package effects

import (
	"errors"
	"strings"

	"github.com/coreman2200/roomlight/internal/effect"
	"github.com/coreman2200/roomlight/internal/render"
	"github.com/coreman2200/roomlight/internal/setting"
	"github.com/rs/zerolog/log"
)

const untitled = "Untitled"

// Manager lets the web client create and remove effects through its own
// settings: pick a type, enter a title and press a button.
type Manager struct {
	Registry *effect.Registry
}

// RegisterManager must run after every other template is registered.
func RegisterManager(r *effect.Registry) {
	types := r.Templates()
	if len(types) == 0 {
		panic("manager needs at least one template registered before it")
	}
	var opts setting.Options
	for _, t := range types {
		opts = append(opts, setting.Option{Key: t, Label: titleCase(t)})
	}

	activity := effect.ActivitySetting(effect.Enabled)
	activity.Constant = true
	r.Register(effect.ManagerLibrary, setting.NewMap().
		With(effect.ActivityKey, activity).
		With("title", &setting.String{Header: header("Title"), Placeholder: untitled}).
		With("type", &setting.Select{Header: header("Type"), Value: types[0], Options: opts}).
		With("create", &setting.Boolean{Header: header("Create")}).
		With("remove", &setting.Boolean{Header: header("Remove")}),
		Manager{Registry: r})
}

func (m Manager) Update(inst *effect.Instance, _ render.Buffer) {
	title := strings.TrimSpace(inst.GetString("title"))
	if title == "" {
		title = untitled
	}

	switch {
	case inst.GetBool("create"):
		lib := inst.GetSelect("type")
		_, _, err := m.Registry.Create(lib, title, nil)
		if err != nil && !errors.Is(err, effect.ErrDuplicateInstance) {
			log.Warn().Err(err).Str("effect", title).Str("library", lib).Msg("manager could not create effect")
		}
		inst.SetBool("create", false)
	case inst.GetBool("remove"):
		if title != inst.Name() {
			m.Registry.Delete(title)
		}
		inst.SetBool("remove", false)
	}
}
