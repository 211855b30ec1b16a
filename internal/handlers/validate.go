package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

const (
	defaultAvatarSize       = "150x150"
	defaultLeaderboardLimit = 10
)

var leaderboardNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("store_name", func(fl validator.FieldLevel) bool {
		return leaderboardNamePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("handlers: register store_name validation: %v", err))
	}
	return v
}

type idParams struct {
	ID int64 `validate:"gt=0"`
}

type avatarParams struct {
	ID   int64  `validate:"gt=0"`
	Size string `validate:"oneof=48x48 60x60 100x100 150x150 180x180 352x352 420x420 720x720"`
}

type leaderboardParams struct {
	UniverseID int64  `validate:"gt=0"`
	Name       string `validate:"min=1,max=50,store_name"`
	Limit      int    `validate:"min=1,max=100"`
}

// paramError is a client input problem, reported as 400.
type paramError struct{ msg string }

func (e *paramError) Error() string { return e.msg }

func pathInt(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &paramError{msg: fmt.Sprintf("%s must be a positive integer", name)}
	}
	return v, nil
}

func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &paramError{msg: err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return &paramError{msg: strings.Join(msgs, "; ")}
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "gt":
		return field + " must be a positive integer"
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "max":
		if fe.Kind().String() == "string" {
			return field + " must be 1 to 50 characters"
		}
		return field + " must be between 1 and 100"
	case "store_name":
		return field + " may only contain letters, digits, '_' and '-'"
	}
	return field + " is invalid"
}

func parseID(r *http.Request, name string) (int64, error) {
	id, err := pathInt(r, name)
	if err != nil {
		return 0, err
	}
	if err := check(idParams{ID: id}); err != nil {
		return 0, &paramError{msg: name + " must be a positive integer"}
	}
	return id, nil
}

func parseAvatar(r *http.Request) (avatarParams, error) {
	id, err := pathInt(r, "id")
	if err != nil {
		return avatarParams{}, err
	}
	p := avatarParams{ID: id, Size: r.URL.Query().Get("size")}
	if p.Size == "" {
		p.Size = defaultAvatarSize
	}
	return p, check(p)
}

func parseLeaderboard(r *http.Request) (leaderboardParams, error) {
	universeID, err := pathInt(r, "universeId")
	if err != nil {
		return leaderboardParams{}, err
	}
	p := leaderboardParams{
		UniverseID: universeID,
		Name:       chi.URLParam(r, "name"),
		Limit:      defaultLeaderboardLimit,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, &paramError{msg: "limit must be between 1 and 100"}
		}
		p.Limit = n
	}
	return p, check(p)
}
