// smoke - 실행 중인 서버를 대상으로 가입/로그인/회전/재사용 거부 시나리오를 확인한다.
//
//	go run ./cmd/smoke -base-url http://localhost:4000
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/postboard/backend/internal/client"
	"github.com/postboard/backend/internal/model"
)

type step struct {
	name string
	run  func(ctx context.Context) error
}

func main() {
	var (
		baseURL  = flag.String("base-url", "http://localhost:4000", "API server base url")
		password = flag.String("password", "Pw123!", "password for the generated account")
		timeout  = flag.Duration("timeout", 30*time.Second, "overall timeout")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	api, err := client.NewAPIClient(*baseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create client: %v\n", err)
		os.Exit(2)
	}
	anon, err := client.NewAPIClient(*baseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create client: %v\n", err)
		os.Exit(2)
	}

	email := fmt.Sprintf("smoke-%s@example.com", uuid.NewString()[:8])
	register := model.RegisterRequest{Email: email, Password: *password, Name: "A"}
	var originalRefresh string

	steps := []step{
		{"register", func(ctx context.Context) error {
			_, err := api.Register(ctx, register)
			return err
		}},
		{"register duplicate is rejected", func(ctx context.Context) error {
			return expectStatus(func() error { _, err := api.Register(ctx, register); return err }, http.StatusBadRequest)
		}},
		{"login", func(ctx context.Context) error {
			if _, err := api.Login(ctx, email, *password); err != nil {
				return err
			}
			originalRefresh = api.Cookie("refresh_token")
			if originalRefresh == "" || api.Cookie("access_token") == "" {
				return fmt.Errorf("login did not set both cookies")
			}
			return nil
		}},
		{"login with wrong password is rejected", func(ctx context.Context) error {
			return expectStatus(func() error { _, err := anon.Login(ctx, email, *password+"x"); return err }, http.StatusUnauthorized)
		}},
		{"refresh with original token", func(ctx context.Context) error {
			return api.RefreshWithToken(ctx, originalRefresh)
		}},
		{"second refresh with original token is rejected", func(ctx context.Context) error {
			return expectStatus(func() error { return api.RefreshWithToken(ctx, originalRefresh) }, http.StatusUnauthorized)
		}},
		{"me without cookies is rejected", func(ctx context.Context) error {
			return expectStatus(func() error { _, err := anon.Me(ctx); return err }, http.StatusUnauthorized)
		}},
		{"me with session", func(ctx context.Context) error {
			me, err := api.Me(ctx)
			if err != nil {
				return err
			}
			if me.Email != email {
				return fmt.Errorf("unexpected email %q", me.Email)
			}
			return nil
		}},
	}

	failed := 0
	for _, s := range steps {
		if err := s.run(ctx); err != nil {
			failed++
			fmt.Printf("FAIL %s: %v\n", s.name, err)
			continue
		}
		fmt.Printf("ok   %s\n", s.name)
	}
	if failed > 0 {
		fmt.Printf("%d/%d steps failed\n", failed, len(steps))
		os.Exit(1)
	}
	fmt.Println("all steps passed")
}

func expectStatus(call func() error, status int) error {
	err := call()
	if client.IsStatus(err, status) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("expected status %d, got success", status)
	}
	return fmt.Errorf("expected status %d, got %v", status, err)
}
