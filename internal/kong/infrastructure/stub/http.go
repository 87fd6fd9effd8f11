package stub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/pkg/errors"

	"github.com/jnikolaeva/kongclient/internal/kong/application"
)

const (
	sessionUserKey     = "user_id"
	maxMultipartMemory = 32 << 20
)

var (
	ErrUnauthenticated = errors.New("user is not authenticated")
	ErrBadRequest      = errors.New("invalid request")
)

// HttpServer serves the kong accounts, auth and properties endpoints backed
// by an in-memory IdentityService.
type HttpServer struct {
	errorLogger  log.Logger
	idService    IdentityService
	sessionStore sessions.Store
	cookieName   string
}

func NewHttpServer(errorLogger log.Logger, idService IdentityService, sessionStore sessions.Store, cookieName string) *HttpServer {
	return &HttpServer{
		errorLogger:  errorLogger,
		idService:    idService,
		sessionStore: sessionStore,
		cookieName:   cookieName,
	}
}

func (s *HttpServer) MakeHandler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/accounts", s.makeCreateAccountHandler()).Methods(http.MethodPost)
	r.Handle("/auth", s.makeSignInHandler()).Methods(http.MethodPost)
	r.Handle("/login", s.makeSignInHandler()).Methods(http.MethodPost)
	r.Handle("/properties", s.requireSession(s.makeSubmitPropertyHandler())).Methods(http.MethodPost)
	r.Handle("/properties", s.requireSession(s.makeGetPropertiesHandler())).Methods(http.MethodGet)
	r.Handle("/ready", MakeReadyHandler()).Methods(http.MethodGet)
	r.Handle("/live", MakeLiveHandler()).Methods(http.MethodGet)
	return r
}

func (s *HttpServer) makeCreateAccountHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req, err := decodeCreateAccountRequest(ctx, r)
		if err != nil {
			s.encodeErrorResponse(ctx, err, w)
			return
		}
		user, err := s.idService.Register(ctx, req)
		if err != nil {
			s.encodeErrorResponse(ctx, err, w)
			return
		}
		_ = s.encodeResponse(ctx, w, http.StatusCreated, &accountResponse{Username: user.Username})
	})
}

func (s *HttpServer) makeSignInHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req, err := decodeSignInRequest(ctx, r)
		if err != nil {
			s.encodeErrorResponse(ctx, err, w)
			return
		}
		session, err := s.sessionStore.Get(r, s.cookieName)
		if err != nil {
			// a cookie from another key still yields a fresh session
			_ = s.errorLogger.Log("msg", "discarding session", "err", err)
		}

		user, err := s.idService.Login(ctx, req.Username, req.Password)
		if err != nil {
			session.Values[sessionUserKey] = ""
			_ = session.Save(r, w)

			s.encodeErrorResponse(ctx, err, w)
			return
		}

		session.Values[sessionUserKey] = user.ID.String()
		if err = session.Save(r, w); err != nil {
			s.encodeErrorResponse(ctx, err, w)
			return
		}

		_ = s.encodeResponse(ctx, w, http.StatusOK, &signInResponse{
			ID:       user.ID.String(),
			Username: user.Username,
		})
	})
}

func (s *HttpServer) makeSubmitPropertyHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		property, photos, err := decodeSubmitPropertyRequest(ctx, r)
		if err != nil {
			s.encodeErrorResponse(ctx, err, w)
			return
		}
		stored, err := s.idService.AddProperty(ctx, property, photos)
		if err != nil {
			s.encodeErrorResponse(ctx, err, w)
			return
		}
		_ = s.encodeResponse(ctx, w, http.StatusCreated, stored)
	})
}

func (s *HttpServer) makeGetPropertiesHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		properties, err := s.idService.Properties(ctx)
		if err != nil {
			s.encodeErrorResponse(ctx, err, w)
			return
		}
		_ = s.encodeResponse(ctx, w, http.StatusOK, properties)
	})
}

func (s *HttpServer) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := s.sessionStore.Get(r, s.cookieName)
		if err != nil {
			s.encodeErrorResponse(r.Context(), errors.Wrap(ErrUnauthenticated, err.Error()), w)
			return
		}
		if userID, ok := session.Values[sessionUserKey].(string); !ok || userID == "" {
			s.encodeErrorResponse(r.Context(), ErrUnauthenticated, w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeCreateAccountRequest(_ context.Context, r *http.Request) (req application.AccountCreationInput, err error) {
	if e := json.NewDecoder(r.Body).Decode(&req); e != nil && e != io.EOF {
		return req, errors.WithMessage(ErrBadRequest, "failed to decode request body")
	}
	if e := req.Validate(); e != nil {
		return req, errors.WithMessage(ErrBadRequest, e.Error())
	}
	return req, nil
}

func decodeSignInRequest(_ context.Context, r *http.Request) (req application.AccountAuthInput, err error) {
	if e := json.NewDecoder(r.Body).Decode(&req); e != nil && e != io.EOF {
		return req, errors.WithMessage(ErrBadRequest, "failed to decode request body")
	}
	if e := req.Validate(); e != nil {
		return req, errors.WithMessage(ErrBadRequest, e.Error())
	}
	return req, nil
}

func decodeSubmitPropertyRequest(_ context.Context, r *http.Request) (p application.Property, photos []string, err error) {
	if e := r.ParseMultipartForm(maxMultipartMemory); e != nil {
		return p, nil, errors.WithMessage(ErrBadRequest, "failed to parse multipart form")
	}

	p.Name = r.FormValue("name")
	p.Address = r.FormValue("address")
	p.Description = r.FormValue("description")
	if p.Name == "" {
		return p, nil, errors.WithMessage(ErrBadRequest, "missing required field 'name'")
	}
	if p.Address == "" {
		return p, nil, errors.WithMessage(ErrBadRequest, "missing required field 'address'")
	}

	bedrooms, e := strconv.ParseUint(r.FormValue("bedrooms"), 10, 16)
	if e != nil {
		return p, nil, errors.WithMessage(ErrBadRequest, "invalid field 'bedrooms'")
	}
	p.Bedrooms = uint16(bedrooms)
	bathrooms, e := strconv.ParseUint(r.FormValue("bathrooms"), 10, 16)
	if e != nil {
		return p, nil, errors.WithMessage(ErrBadRequest, "invalid field 'bathrooms'")
	}
	p.Bathrooms = uint16(bathrooms)
	if p.Sqft, e = strconv.ParseFloat(r.FormValue("sqft"), 64); e != nil {
		return p, nil, errors.WithMessage(ErrBadRequest, "invalid field 'sqft'")
	}

	if v := r.FormValue("agentid"); v != "" {
		agentID, e := strconv.ParseInt(v, 10, 64)
		if e != nil {
			return p, nil, errors.WithMessage(ErrBadRequest, "invalid field 'agentid'")
		}
		p.AgentID = &agentID
	}
	if _, ok := r.MultipartForm.Value["price"]; ok {
		price, e := strconv.ParseFloat(r.FormValue("price"), 64)
		if e != nil {
			return p, nil, errors.WithMessage(ErrBadRequest, "invalid field 'price'")
		}
		p.Price = &price
	}

	for key, headers := range r.MultipartForm.File {
		if !strings.HasPrefix(key, "photo_") {
			continue
		}
		for _, h := range headers {
			photos = append(photos, key+"/"+h.Filename)
		}
	}
	sort.Strings(photos)
	return p, photos, nil
}

func (s *HttpServer) encodeResponse(_ context.Context, w http.ResponseWriter, status int, response interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(response)
}

func (s *HttpServer) encodeErrorResponse(_ context.Context, err error, w http.ResponseWriter) {
	_ = s.errorLogger.Log("err", fmt.Sprintf("%+v", err))

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	var errorResponse = translateError(err)
	w.WriteHeader(errorResponse.Status)
	_ = json.NewEncoder(w).Encode(errorResponse.Response)
}

type transportError struct {
	Status   int
	Response errorResponse
}

func translateError(err error) transportError {
	switch {
	case errors.Is(err, ErrBadRequest):
		return transportError{Status: http.StatusBadRequest, Response: errorResponse{Msg: err.Error()}}
	case errors.Is(err, ErrDuplicateUser):
		return transportError{Status: http.StatusUnauthorized, Response: errorResponse{Msg: "Invalid input"}}
	case errors.Is(err, ErrUserNotFound):
		return transportError{Status: http.StatusNotFound, Response: errorResponse{Msg: "Could not get account"}}
	case errors.Is(err, ErrWrongPassword), errors.Is(err, ErrUnauthenticated):
		return transportError{Status: http.StatusUnauthorized, Response: errorResponse{Msg: err.Error()}}
	default:
		return transportError{Status: http.StatusInternalServerError, Response: errorResponse{Msg: "unexpected error"}}
	}
}
