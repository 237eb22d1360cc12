package dialect

import (
	"fmt"
	"strings"

	"loglens/internal/model"
	"loglens/internal/parse"
)

// ambient collects what both dialects extract identically: controller
// configuration and process identifiers. Every line that no dialect rule
// claims falls through here; nothing is ever fatal.
type ambient struct {
	controllers map[string]*model.ControllerInfo
	identifiers map[string]string
	order       []string // process ids in first-seen controller order
}

func newAmbient() *ambient {
	return &ambient{
		controllers: map[string]*model.ControllerInfo{},
		identifiers: map[string]string{},
	}
}

func (a *ambient) scan(l model.LogLine) {
	if id := model.DetailString(l.Params, "identifier"); id != "" {
		a.identifiers[l.ProcessID] = id
	}

	switch {
	case strings.Contains(l.Message, "AdbController"):
		a.scanAdb(l)
	case strings.Contains(l.Message, "Win32Controller"):
		a.scanWin32(l)
	}
}

// One controller per process: the first one seen wins, later duplicates are
// the framework re-logging its configuration.
func (a *ambient) record(pid string, c *model.ControllerInfo) {
	if _, ok := a.controllers[pid]; ok {
		return
	}
	c.ProcessID = pid
	a.controllers[pid] = c
	a.order = append(a.order, pid)
}

func (a *ambient) scanAdb(l model.LogLine) {
	addr := model.DetailString(l.Params, "address")
	if addr == "" {
		return
	}
	scMask, _ := model.DetailUint64(l.Params, "screencap_methods")
	inMask, _ := model.DetailUint64(l.Params, "input_methods")
	a.record(l.ProcessID, &model.ControllerInfo{
		Type: model.ControllerAdb,
		Adb: &model.AdbControllerInfo{
			AdbPath:          model.DetailString(l.Params, "adb_path"),
			Address:          addr,
			ScreencapMask:    scMask,
			InputMask:        inMask,
			ScreencapMethods: parse.AdbScreencapMethods(scMask),
			InputMethods:     parse.AdbInputMethods(inMask),
		},
	})
}

func (a *ambient) scanWin32(l model.LogLine) {
	hwnd := hwndString(l.Params["hwnd"])
	if hwnd == "" {
		return
	}
	scMask, _ := model.DetailUint64(l.Params, "screencap_method")
	inMask, _ := model.DetailUint64(l.Params, "input_method")
	a.record(l.ProcessID, &model.ControllerInfo{
		Type: model.ControllerWin32,
		Win32: &model.Win32ControllerInfo{
			HWnd:            hwnd,
			ClassName:       model.DetailString(l.Params, "class_name"),
			WindowName:      model.DetailString(l.Params, "window_name"),
			ScreencapMask:   scMask,
			InputMask:       inMask,
			ScreencapMethod: parse.Win32ScreencapMethods(scMask),
			InputMethod:     parse.Win32InputMethods(inMask),
		},
	})
}

// hwnd is logged either as a hex string ("0x00151388") or a bare integer.
func hwndString(v interface{}) string {
	switch h := v.(type) {
	case string:
		return h
	case int64:
		return fmt.Sprintf("0x%08X", h)
	case uint64:
		return fmt.Sprintf("0x%08X", h)
	}
	return ""
}

func (a *ambient) result() ([]model.ControllerInfo, map[string]string) {
	controllers := make([]model.ControllerInfo, 0, len(a.order))
	for _, pid := range a.order {
		controllers = append(controllers, *a.controllers[pid])
	}
	ids := make(map[string]string, len(a.identifiers))
	for k, v := range a.identifiers {
		ids[k] = v
	}
	return controllers, ids
}
