// Package teletest runs bots against a fake Bot API server and builds
// contexts for calling handlers directly.
package teletest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	tele "gopkg.in/telebot.v4"
)

// Call is one Bot API request seen by the server.
type Call struct {
	Method string
	Params map[string]string
	// Files lists the multipart file fields, e.g. "photo".
	Files []string
	// Uploads holds the content of each multipart file field.
	Uploads map[string][]byte
}

// Server is a fake Bot API endpoint that records every call and answers ok.
type Server struct {
	srv *httptest.Server

	mu     sync.Mutex
	calls  []Call
	stored map[string][]byte
	seq    atomic.Int64
}

// NewServer starts a server that is closed with t.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{stored: map[string][]byte{}}
	s.srv = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.srv.Close)
	return s
}

// Bot returns an offline bot that talks to s.
func (s *Server) Bot(t testing.TB) *tele.Bot {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{
		Token:   "123456:TEST",
		URL:     s.srv.URL,
		Offline: true,
		Client:  s.srv.Client(),
	})
	if err != nil {
		t.Fatalf("teletest: new bot: %v", err)
	}
	return bot
}

// AddFile makes content downloadable under fileID through getFile.
func (s *Server) AddFile(fileID string, content []byte) {
	s.mu.Lock()
	s.stored[fileID] = content
	s.mu.Unlock()
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	if i := strings.Index(r.URL.Path, "/file/bot"); i >= 0 {
		s.serveFile(w, r, r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:])
		return
	}
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	call := Call{Method: method, Params: map[string]string{}, Uploads: map[string][]byte{}}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if err := r.ParseMultipartForm(10 << 20); err == nil {
			for k, v := range r.MultipartForm.Value {
				if len(v) > 0 {
					call.Params[k] = v[0]
				}
			}
			for k, fhs := range r.MultipartForm.File {
				call.Files = append(call.Files, k)
				if len(fhs) == 0 {
					continue
				}
				if f, err := fhs[0].Open(); err == nil {
					call.Uploads[k], _ = io.ReadAll(f)
					_ = f.Close()
				}
			}
		}
	} else {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err == nil {
			for k, v := range raw {
				if str, ok := v.(string); ok {
					call.Params[k] = str
					continue
				}
				b, _ := json.Marshal(v)
				call.Params[k] = string(b)
			}
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	_, known := s.stored[call.Params["file_id"]]
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	chatID, _ := strconv.ParseInt(call.Params["chat_id"], 10, 64)
	switch method {
	case "sendMessage", "editMessageText", "editMessageCaption":
		_, _ = fmt.Fprintf(w, `{"ok":true,"result":%s}`, s.message(chatID, ""))
	case "sendPhoto":
		// Real servers answer with every size of the photo; telebot keeps the last.
		media := `"photo":[{"file_id":"p1","file_unique_id":"u1","width":1,"height":1}]`
		_, _ = fmt.Fprintf(w, `{"ok":true,"result":%s}`, s.message(chatID, media))
	case "sendDocument":
		name, _ := json.Marshal(call.Params["file_name"])
		media := fmt.Sprintf(`"document":{"file_id":"d1","file_unique_id":"u1","file_name":%s}`, name)
		_, _ = fmt.Fprintf(w, `{"ok":true,"result":%s}`, s.message(chatID, media))
	case "getFile":
		if !known {
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: invalid file_id"}`))
			return
		}
		id, _ := json.Marshal(call.Params["file_id"])
		_, _ = fmt.Fprintf(w, `{"ok":true,"result":{"file_id":%s,"file_unique_id":"u1","file_path":"files/%s"}}`,
			id, call.Params["file_id"])
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}
}

func (s *Server) message(chatID int64, media string) string {
	if media != "" {
		media = "," + media
	}
	return fmt.Sprintf(`{"message_id":%d,"date":0,"chat":{"id":%d,"type":"private"}%s}`, s.seq.Add(1), chatID, media)
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, fileID string) {
	s.mu.Lock()
	content, ok := s.stored[fileID]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(content)
}

// Calls returns a copy of the recorded calls.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Reset forgets recorded calls.
func (s *Server) Reset() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

// Texts returns the text of every sent or edited message, in order.
func (s *Server) Texts() []string {
	var out []string
	for _, c := range s.Calls() {
		switch c.Method {
		case "sendMessage", "editMessageText":
			out = append(out, c.Params["text"])
		}
	}
	return out
}

// LastText returns the most recent message text, or "".
func (s *Server) LastText() string {
	texts := s.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// Method returns the recorded calls of method.
func (s *Server) Method(method string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

var updateSeq atomic.Int64

func sender(userID int64, username string) *tele.User {
	return &tele.User{ID: userID, Username: username, FirstName: username}
}

func chat(userID int64) *tele.Chat {
	return &tele.Chat{ID: userID, Type: tele.ChatPrivate}
}

// Text builds a private text message from userID.
func Text(bot *tele.Bot, userID int64, username, text string) tele.Context {
	return bot.NewContext(tele.Update{
		ID: int(updateSeq.Add(1)),
		Message: &tele.Message{
			ID:     int(updateSeq.Load()),
			Sender: sender(userID, username),
			Chat:   chat(userID),
			Text:   text,
		},
	})
}

// Command builds a command message such as "/start <payload>".
func Command(bot *tele.Bot, userID int64, username, command, payload string) tele.Context {
	text := command
	if payload != "" {
		text += " " + payload
	}
	c := Text(bot, userID, username, text)
	c.Message().Payload = payload
	return c
}

// Document builds a private message carrying a file that AddFile registered.
func Document(bot *tele.Bot, userID int64, username, fileID, fileName string) tele.Context {
	c := Text(bot, userID, username, "")
	c.Message().Document = &tele.Document{
		File:     tele.File{FileID: fileID},
		FileName: fileName,
	}
	return c
}

// Callback builds a button press the way it reaches a tele.OnCallback
// handler: Data is "\f<unique>|<payload>".
func Callback(bot *tele.Bot, userID int64, username, unique, payload string) tele.Context {
	id := updateSeq.Add(1)
	data := "\f" + unique
	if payload != "" {
		data += "|" + payload
	}
	return bot.NewContext(tele.Update{
		ID: int(id),
		Callback: &tele.Callback{
			ID:     strconv.FormatInt(id, 10),
			Sender: sender(userID, username),
			Message: &tele.Message{
				ID:     1,
				Sender: &tele.User{ID: 1, IsBot: true},
				Chat:   chat(userID),
			},
			Data: data,
		},
	})
}
