package process

import (
	"github.com/okelo/stele/internal/component"
	"github.com/okelo/stele/internal/composition"
	"github.com/okelo/stele/internal/filestore"
)

// Staged is a hypothetical next composition event together with the
// components it references, which must be stored before the record.
type Staged struct {
	Event      composition.Event
	Components []component.Component
}

// StageEvent writes the staged components and appends the record onto the
// current head of files, returning the record hash.
func StageEvent(files filestore.Store, s Staged) (string, error) {
	comps := component.NewStore(files)
	for _, c := range s.Components {
		if _, err := comps.StoreComponent(c); err != nil {
			return "", err
		}
	}
	log, err := composition.OpenLog(files)
	if err != nil {
		return "", err
	}
	return log.Append(s.Event)
}

// TestContinue stages the event against an in-memory overlay of files and
// attempts a full restore from the overlay. Nothing under files is
// modified; a nil error means committing the same event would leave the
// store restorable. This is the test phase of test-then-commit.
func TestContinue(files filestore.Store, opts Options, s Staged) error {
	overlay := filestore.NewRecording(files)
	if _, err := StageEvent(overlay, s); err != nil {
		return err
	}
	lp, err := Restore(filestore.NewReadonly(overlay), opts)
	if err != nil {
		return err
	}
	lp.Dispose()
	return nil
}
