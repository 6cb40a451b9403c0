// Package bus exposes the auth engine as an RPC server on the message
// broker.  Requests arrive on a durable queue with the operation name
// in the message Type header and an encrypted envelope as body; replies
// go to the ReplyTo queue carrying the request's CorrelationId.  The
// consumer runs a reconnect loop with exponential backoff and keeps
// serving until its context is cancelled.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/ecommerce-auth/internal/auth"
	"github.com/iliyamo/ecommerce-auth/internal/crypto"
)

// Operation names, shared wire vocabulary with the gateway.
const (
	OpRegister       = "auth.register"
	OpLogin          = "auth.login"
	OpVerifyEmail    = "auth.verifyEmail"
	OpRefreshToken   = "auth.refresh-token"
	OpLogout         = "auth.logout"
	OpMe             = "auth.me"
	OpForgotPassword = "auth.forgot-password"
	OpResetPassword  = "auth.resetPassword"
	OpGetAllUsers    = "auth.get-all"
	OpGetUser        = "auth.get-user"
	OpDeleteUser     = "auth.delete-user"
	OpUpdateUser     = "auth.update-user"
)

// ErrorResponse is the structured error payload placed inside the
// encrypted reply envelope.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
}

// Server consumes the auth RPC queue.
type Server struct {
	URL   string
	Queue string
	Codec *crypto.Codec
	Svc   *auth.Service
}

func NewServer(url, queue string, codec *crypto.Codec, svc *auth.Service) *Server {
	return &Server{URL: url, Queue: queue, Codec: codec, Svc: svc}
}

// Run connects to the broker and serves until ctx is cancelled.  Dial
// failures back off exponentially up to 30s; a dropped connection
// re-enters the dial loop.
func (s *Server) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, err := amqp.Dial(s.URL)
		if err != nil {
			log.Printf("auth-rpc: failed to dial broker: %v; retrying in %s", err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := s.consumeLoop(ctx, conn); err != nil {
			log.Printf("auth-rpc: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (s *Server) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("auth-rpc: set QoS failed: %v", err)
	}

	if _, err := ch.QueueDeclare(s.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(s.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			s.handleDelivery(ctx, ch, d)
		}
	}
}

func (s *Server) handleDelivery(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) {
	op := d.Type
	if op == "" {
		op = d.RoutingKey
	}

	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	reply, err := s.dispatch(reqCtx, op, string(d.Body))
	if err != nil {
		log.Printf("auth-rpc: %s failed: %v", op, err)
		reply = s.errorReply(reqCtx, err)
	}

	if d.ReplyTo != "" {
		pub := amqp.Publishing{
			ContentType:   "text/plain",
			CorrelationId: d.CorrelationId,
			Timestamp:     time.Now().UTC(),
			Body:          []byte(reply),
		}
		if err := ch.PublishWithContext(reqCtx, "", d.ReplyTo, false, false, pub); err != nil {
			log.Printf("auth-rpc: reply to %s failed: %v", d.ReplyTo, err)
			_ = d.Nack(false, false) // drop, do not requeue to avoid tight loops
			return
		}
	}
	_ = d.Ack(false)
}

// dispatch routes one operation.  Except for verifyEmail (plain token
// in, HTML out) and me (plain access token in), the body is an
// encrypted envelope and so is the reply.
func (s *Server) dispatch(ctx context.Context, op, body string) (string, error) {
	switch op {
	case OpRegister:
		var req auth.RegisterRequest
		if err := s.Codec.Decrypt(ctx, body, &req); err != nil {
			return "", err
		}
		resp, err := s.Svc.Register(ctx, req)
		if err != nil {
			return "", err
		}
		return s.Codec.Encrypt(ctx, resp)

	case OpLogin:
		var req auth.LoginRequest
		if err := s.Codec.Decrypt(ctx, body, &req); err != nil {
			return "", err
		}
		resp, err := s.Svc.Login(ctx, req)
		if err != nil {
			return "", err
		}
		return s.Codec.Encrypt(ctx, resp)

	case OpVerifyEmail:
		// The token rides plain: browsers follow the emailed link and
		// the reply is the rendered page itself.
		return s.Svc.VerifyEmail(ctx, body), nil

	case OpRefreshToken:
		var req auth.RefreshRequest
		if err := s.Codec.Decrypt(ctx, body, &req); err != nil {
			return "", err
		}
		resp, err := s.Svc.Refresh(ctx, req)
		if err != nil {
			return "", err
		}
		return s.Codec.Encrypt(ctx, resp)

	case OpLogout:
		var req auth.LogoutRequest
		if err := s.Codec.Decrypt(ctx, body, &req); err != nil {
			return "", err
		}
		resp, err := s.Svc.Logout(ctx, req)
		if err != nil {
			return "", err
		}
		return s.Codec.Encrypt(ctx, resp)

	case OpMe:
		resp, err := s.Svc.Me(ctx, body)
		if err != nil {
			return "", err
		}
		return s.Codec.Encrypt(ctx, resp)

	case OpForgotPassword:
		var req auth.ForgotPasswordRequest
		if err := s.Codec.Decrypt(ctx, body, &req); err != nil {
			return "", err
		}
		resp, err := s.Svc.ForgotPassword(ctx, req.Username)
		if err != nil {
			return "", err
		}
		return s.Codec.Encrypt(ctx, resp)

	case OpResetPassword:
		var req auth.ResetPasswordRequest
		if err := s.Codec.Decrypt(ctx, body, &req); err != nil {
			return "", err
		}
		resp, err := s.Svc.ResetPassword(ctx, req.Token, req.NewPassword)
		if err != nil {
			return "", err
		}
		return s.Codec.Encrypt(ctx, resp)

	case OpGetAllUsers:
		resp, err := s.Svc.GetAllUsers(ctx)
		if err != nil {
			return "", err
		}
		return s.Codec.Encrypt(ctx, resp)

	case OpGetUser:
		resp, err := s.Svc.GetUserByID(ctx, body)
		if err != nil {
			return "", err
		}
		return s.Codec.Encrypt(ctx, resp)

	case OpDeleteUser:
		var req auth.DeleteUserRequest
		if err := s.Codec.Decrypt(ctx, body, &req); err != nil {
			return "", err
		}
		resp, err := s.Svc.DeleteUser(ctx, req.ID)
		if err != nil {
			return "", err
		}
		return s.Codec.Encrypt(ctx, resp)

	case OpUpdateUser:
		var req auth.UpdateUserRequest
		if err := s.Codec.Decrypt(ctx, body, &req); err != nil {
			return "", err
		}
		resp, err := s.Svc.UpdateUser(ctx, req)
		if err != nil {
			return "", err
		}
		return s.Codec.Encrypt(ctx, resp)

	default:
		return "", fmt.Errorf("unknown operation %q", op)
	}
}

// errorReply encrypts the structured error payload.  If even that
// fails, the reply is the plain JSON payload; losing envelope secrecy
// on an error message beats losing the reply entirely.
func (s *Server) errorReply(ctx context.Context, cause error) string {
	payload := ErrorResponse{
		StatusCode: auth.StatusFor(cause),
		Message:    auth.PublicMessage(cause),
	}
	wire, err := s.Codec.Encrypt(ctx, payload)
	if err != nil {
		raw, _ := json.Marshal(payload)
		return string(raw)
	}
	return wire
}
