package web

import (
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/velraen/gpk_browser/pack"
	file_gpk "github.com/velraen/gpk_browser/pack/gpk"
	"github.com/velraen/gpk_browser/status"
	"github.com/velraen/gpk_browser/utils"
	"github.com/velraen/gpk_browser/vfs"
	"github.com/velraen/gpk_browser/webutils"
)

func HandlerAjaxPack(w http.ResponseWriter, r *http.Request) {
	if files, err := ServerDirectory.List(); err != nil {
		webutils.WriteError(w, err)
	} else {
		sort.Strings(files)
		webutils.WriteJson(w, files)
	}
}

func HandlerAjaxPackFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	data, err := pack.GetInstanceHandler(ServerDirectory, file)
	if err != nil {
		log.Printf("Error getting file from pack: %v", err)
		webutils.WriteError(w, err)
		return
	}
	webutils.WriteJson(w, data)
}

func getGpkEntryId(w http.ResponseWriter, r *http.Request) (*file_gpk.Gpk, file_gpk.EntryId, bool) {
	file := mux.Vars(r)["file"]
	param := mux.Vars(r)["param"]

	data, err := pack.GetInstanceHandler(ServerDirectory, file)
	if err != nil {
		log.Printf("Error getting file from pack: %v", err)
		webutils.WriteError(w, err)
		return nil, 0, false
	}

	p, ok := data.(*file_gpk.Gpk)
	if !ok {
		webutils.WriteError(w, errors.Errorf("File %s not contain subdata", file))
		return nil, 0, false
	}

	id, err := strconv.Atoi(param)
	if err != nil {
		webutils.WriteError(w, errors.Errorf("param '%s' is not integer", param))
		return nil, 0, false
	}

	return p, file_gpk.EntryId(id), true
}

func HandlerAjaxPackFileParam(w http.ResponseWriter, r *http.Request) {
	p, id, ok := getGpkEntryId(w, r)
	if !ok {
		return
	}
	if err := p.WebHandlerEntryById(w, id); err != nil {
		webutils.WriteError(w, errors.Wrapf(err, "gpk web handler return error"))
	}
}

func HandlerDumpPackFile(w http.ResponseWriter, r *http.Request) {
	file := mux.Vars(r)["file"]
	f, err := vfs.DirectoryGetFile(ServerDirectory, file)
	if err != nil {
		webutils.WriteError(w, err)
		return
	}

	if reader, err := vfs.OpenFileAndGetReader(f, true); err == nil {
		defer f.Close()
		webutils.WriteFile(w, reader, file)
	} else {
		webutils.WriteError(w, errors.Wrapf(err, "Error getting file reader"))
	}
}

func HandlerDumpPackParamFile(w http.ResponseWriter, r *http.Request) {
	p, id, ok := getGpkEntryId(w, r)
	if !ok {
		return
	}
	if err := p.WebHandlerDumpEntryData(w, id); err != nil {
		webutils.WriteError(w, err)
	}
}

func HandlerActionPackFileParam(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]
	p, id, ok := getGpkEntryId(w, r)
	if !ok {
		return
	}

	switch action {
	case "spew":
		rsrc, err := p.GetEntryResource(id)
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		inst, err := p.GetInstanceFromEntry(id)
		if err != nil {
			webutils.WriteError(w, err)
			return
		}
		webutils.WriteFile(w, strings.NewReader(utils.SDump(inst)), rsrc.Entry.Name+".spew.txt")
	default:
		if err := p.WebHandlerCallEntryHttpAction(w, r, id, action); err != nil {
			webutils.WriteError(w, err)
		}
	}
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func HandlerWebsocketStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[web] ws upgrade error: %v", err)
		return
	}
	status.NewClient(conn)
}
