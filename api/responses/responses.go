package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/types"
)

// WriteSuccess writes data as-is with 200. Used by read endpoints that return
// lists, pages or objects.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteStatus writes {"Status": true} merged with fields.
func WriteStatus(w http.ResponseWriter, status int, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["Status"] = true
	WriteJSON(w, status, body)
}

// WriteOK is WriteStatus with 200.
func WriteOK(w http.ResponseWriter, fields map[string]any) {
	WriteStatus(w, http.StatusOK, fields)
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	var public any = meta.PublicMessage
	if m := typed.Message(); meta.ExposeMessage && m != "" {
		public = m
	}
	if d := typed.Details(); meta.DetailsAllowed && d != nil {
		public = d
	}

	if logg != nil {
		serverSide := meta.HTTPStatus >= http.StatusInternalServerError
		fields := pkgerrors.Inspect(err).Fields(serverSide)
		fields["http_status"] = meta.HTTPStatus
		if serverSide {
			logg.Error(logg.WithFields(ctx, fields), "request.error", err)
		} else {
			logg.Info(logg.WithFields(ctx, fields), "request.rejected")
		}
	}

	WriteJSON(w, meta.HTTPStatus, types.StatusEnvelope{
		Status: false,
		Errors: public,
		Code:   string(typed.Code()),
	})
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
