package httpapi

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/Well2333/clashprofile/internal/model"
	"github.com/Well2333/clashprofile/internal/updater"
)

type handlers struct {
	opt Options
	log *zap.Logger
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	WriteText(w, http.StatusOK, "ok\n")
}

func (h *handlers) handleProvider(w http.ResponseWriter, r *http.Request) {
	name := trimExt(r.PathValue("name"))
	path, err := h.opt.Layout.ProviderPath(name)
	if err != nil {
		writeErrorFromErr(w, notFound("PROVIDER_NOT_FOUND", "rule-provider 不存在："+name, "serve_provider"))
		return
	}
	body, err := readFile(path, "PROVIDER_NOT_FOUND", "rule-provider 不存在："+name, "serve_provider")
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/yaml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *handlers) handleProfile(w http.ResponseWriter, r *http.Request) {
	name := trimExt(r.PathValue("name"))
	path, err := h.opt.Layout.ProfilePath(name)
	if err != nil {
		writeErrorFromErr(w, notFound("PROFILE_NOT_FOUND", "配置不存在："+name, "serve_profile"))
		return
	}
	body, err := readFile(path, "PROFILE_NOT_FOUND", "配置不存在："+name, "serve_profile")
	if err != nil {
		writeErrorFromErr(w, err)
		return
	}

	hdr := w.Header()
	for k, v := range h.opt.Headers {
		hdr.Set(k, v)
	}
	if h.opt.Updater != nil {
		if info := h.opt.Updater.Counter(r.Context(), name); info != "" {
			hdr.Set("subscription-userinfo", info)
		}
	}
	hdr.Set("Cache-Control", "no-store,no-cache,must-revalidate")
	hdr.Set("Content-Disposition", contentDispositionAttachment(name+".yaml"))
	hdr.Set("Content-Type", "text/yaml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *handlers) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if h.opt.Updater == nil {
		WriteError(w, http.StatusServiceUnavailable, model.AppError{Code: "UPDATER_UNAVAILABLE", Message: "更新器未就绪", Stage: "update"})
		return
	}
	// A client hanging up must not abort the cycle half way.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.opt.UpdateTimeout)
	defer cancel()

	err := h.opt.Updater.Update(ctx)
	switch {
	case err == nil:
		WriteText(w, http.StatusOK, "update complete\n")
	case errors.Is(err, updater.ErrBusy):
		WriteError(w, http.StatusConflict, model.AppError{
			Code:    "UPDATE_BUSY",
			Message: "已有更新正在进行",
			Stage:   "update",
		})
	default:
		h.log.Warn("update triggered over http failed", zap.Error(err))
		WriteError(w, http.StatusUnprocessableEntity, updateFailure(err))
	}
}

func (h *handlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	if h.opt.Updater == nil {
		WriteJSON(w, http.StatusOK, updater.Status{})
		return
	}
	WriteJSON(w, http.StatusOK, h.opt.Updater.Status())
}

func readFile(path, code, message, stage string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(code, message, stage)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
