package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"edupanel/internal/grading"
	"edupanel/internal/security"
)

// renderTemplate buffers the page so a template error never leaves a half-written response
func renderTemplate(w http.ResponseWriter, templates *template.Template, name string, status int, data interface{}) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Printf("Error rendering %s template: %v", name, err)
		http.Error(w, ErrInternalServerError, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// setFlash stores a notice that the next page shows until it expires
func setFlash(w http.ResponseWriter, r *http.Request, notice grading.Notice) {
	ttl := notice.Remaining(time.Now())
	if ttl <= 0 {
		return
	}
	value := strconv.FormatInt(notice.ExpiresAt.UnixMilli(), 10) + "." +
		base64.RawURLEncoding.EncodeToString([]byte(notice.Message))
	http.SetCookie(w, security.CreateFlashCookie(r, value, ttl))
}

// readFlash consumes the pending notice, if it is still active
func readFlash(w http.ResponseWriter, r *http.Request) grading.Notice {
	cookie, err := r.Cookie(security.FlashCookieName)
	if err != nil {
		return grading.Notice{}
	}
	http.SetCookie(w, security.CreateDeleteCookie(r, security.FlashCookieName))

	expiresPart, msgPart, ok := strings.Cut(cookie.Value, ".")
	if !ok {
		return grading.Notice{}
	}
	ms, err := strconv.ParseInt(expiresPart, 10, 64)
	if err != nil {
		return grading.Notice{}
	}
	msg, err := base64.RawURLEncoding.DecodeString(msgPart)
	if err != nil {
		return grading.Notice{}
	}

	notice := grading.Notice{Message: string(msg), ExpiresAt: time.UnixMilli(ms)}
	if !notice.Active(time.Now()) {
		return grading.Notice{}
	}
	return notice
}

// queryInt reads a non-negative integer query parameter, defaulting to 0
func queryInt(r *http.Request, key string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// TemplateFuncs are the helpers available to every page
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatGrade": grading.FormatGrade,
		"formatDate": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},
		"formatDeadline": func(t *time.Time) string {
			if t == nil {
				return "No deadline"
			}
			return t.Format("Jan 2, 2006 15:04")
		},
		"add": func(a, b int) int {
			return a + b
		},
		"sub": func(a, b int) int {
			return a - b
		},
		"remainingMS": func(n grading.Notice) int64 {
			return n.Remaining(time.Now()).Milliseconds()
		},
		// dict builds the argument map of a component template from key/value pairs
		"dict": func(pairs ...interface{}) (map[string]interface{}, error) {
			if len(pairs)%2 != 0 {
				return nil, errors.New("dict needs an even number of arguments")
			}
			m := make(map[string]interface{}, len(pairs)/2)
			for i := 0; i < len(pairs); i += 2 {
				key, ok := pairs[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
				}
				m[key] = pairs[i+1]
			}
			return m, nil
		},
	}
}
