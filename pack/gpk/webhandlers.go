package gpk

import (
	"bytes"
	"net/http"
	"reflect"

	"github.com/pkg/errors"

	"github.com/velraen/gpk_browser/webutils"
)

func (p *Gpk) WebHandlerEntryById(w http.ResponseWriter, id EntryId) error {
	inst, err := p.GetInstanceFromEntry(id)
	if err != nil {
		return errors.Wrapf(err, "Entry %d of %s parsing error", id, p.Name())
	}

	type Result struct {
		Entry *Entry
		Data  interface{}
	}

	rsrc, err := p.GetEntryResource(id)
	if err != nil {
		return err
	}

	val, err := inst.Marshal(rsrc)
	if err != nil {
		return errors.Wrapf(err, "Error marshaling entry %d from %s", id, p.Name())
	}

	webutils.WriteJson(w, &Result{Entry: p.GetEntryById(id), Data: val})
	return nil
}

func (p *Gpk) WebHandlerDumpEntryData(w http.ResponseWriter, id EntryId) error {
	rsrc, err := p.GetEntryResource(id)
	if err != nil {
		return err
	}
	webutils.WriteFile(w, bytes.NewReader(rsrc.Data), rsrc.Entry.Name)
	return nil
}

// WebHandlerCallEntryHttpAction forwards an action to the parsed
// instance's HttpAction method when it has one.
func (p *Gpk) WebHandlerCallEntryHttpAction(w http.ResponseWriter, r *http.Request, id EntryId, action string) error {
	inst, err := p.GetInstanceFromEntry(id)
	if err != nil {
		return errors.Wrapf(err, "Entry %d instance getting error", id)
	}

	rt := reflect.TypeOf(inst)
	method, has := rt.MethodByName("HttpAction")
	if !has {
		return errors.Errorf("%s has not func HttpAction", rt.Name())
	}

	rsrc, err := p.GetEntryResource(id)
	if err != nil {
		return err
	}

	method.Func.Call([]reflect.Value{
		reflect.ValueOf(inst),
		reflect.ValueOf(rsrc),
		reflect.ValueOf(w),
		reflect.ValueOf(r),
		reflect.ValueOf(action),
	})
	return nil
}
