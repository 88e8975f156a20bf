// seeder 对运行中的服务发起一轮模拟流量: 建房、加入、发消息、读历史，可选触发一次过期清理。
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/sirupsen/logrus"

	"ephemeral-chat/internal/dto"
	"ephemeral-chat/internal/middleware"
)

type seeder struct {
	baseURL string
	client  *http.Client
	log     *logrus.Entry
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	rooms := flag.Int("rooms", 3, "number of rooms to create")
	members := flag.Int("members", 3, "members joining each room besides the creator")
	messages := flag.Int("messages", 10, "messages sent per room")
	cronSecret := flag.String("cron-secret", "", "if set, trigger /api/cron/cleanup with a signed token")
	flag.Parse()

	gofakeit.Seed(time.Now().UnixNano())
	s := &seeder{
		baseURL: *baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     logrus.WithField("component", "seeder"),
	}

	for i := 0; i < *rooms; i++ {
		creator := gofakeit.FirstName()
		code, err := s.createRoom(creator, gofakeit.Number(5, 60), *members+1)
		if err != nil {
			s.log.WithError(err).Error("createRoom failed")
			continue
		}
		users := []string{creator}
		for j := 0; j < *members; j++ {
			name := fmt.Sprintf("%s%d", gofakeit.FirstName(), j)
			if err := s.joinRoom(code, name); err != nil {
				s.log.WithError(err).WithField("room_code", code).Warn("joinRoom failed")
				continue
			}
			users = append(users, name)
		}
		for k := 0; k < *messages; k++ {
			user := users[gofakeit.Number(0, len(users)-1)]
			if err := s.sendMessage(code, user, gofakeit.Sentence(gofakeit.Number(3, 12))); err != nil {
				s.log.WithError(err).WithField("room_code", code).Warn("sendMessage failed")
			}
		}
		count, err := s.listMessages(code)
		if err != nil {
			s.log.WithError(err).WithField("room_code", code).Warn("listMessages failed")
			continue
		}
		s.log.WithFields(logrus.Fields{"room_code": code, "members": len(users), "messages": count}).Info("Room seeded")
	}

	if *cronSecret != "" {
		if err := s.cleanup(*cronSecret); err != nil {
			s.log.WithError(err).Error("cleanup failed")
		}
	}
}

func (s *seeder) createRoom(name string, duration, capacity int) (string, error) {
	var resp dto.CreateRoomResponse
	req := dto.CreateRoomRequest{Name: name, Duration: duration, ParticipantsCount: capacity}
	if err := s.post("/api/rooms", "", req, &resp); err != nil {
		return "", err
	}
	s.log.WithFields(logrus.Fields{"room_code": resp.Code, "creator": name}).Info("Room created")
	return resp.Code, nil
}

func (s *seeder) joinRoom(code, name string) error {
	return s.post("/api/rooms/join", "", dto.RoomMemberRequest{Code: code, Name: name}, nil)
}

func (s *seeder) sendMessage(code, name, text string) error {
	req := dto.SendMessageRequest{RoomCode: code, UserName: name, Message: text}
	return s.post("/api/messages/send", "", req, nil)
}

func (s *seeder) listMessages(code string) (int, error) {
	resp, err := s.client.Get(s.baseURL + "/api/messages/" + code)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}
	var out dto.MessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (s *seeder) cleanup(secret string) error {
	token, err := middleware.NewCronToken(secret, time.Minute)
	if err != nil {
		return err
	}
	var out map[string]interface{}
	if err := s.post("/api/cron/cleanup", token, nil, &out); err != nil {
		return err
	}
	s.log.WithField("result", out).Info("Cleanup triggered")
	return nil
}

func (s *seeder) post(path, token string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(http.MethodPost, s.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e dto.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %s (%s)", path, resp.Status, e.Error, e.Kind)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
