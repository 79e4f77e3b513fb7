// Package verify manages email verification codes. Codes live in a
// DynamoDB table with a TTL attribute so expiry needs no sweeper; a
// successful verification trades the code for a short-lived signup token.
package verify

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jongsul/lostfound/internal/auth"
)

// CodeTTL is how long a verification code stays valid.
const CodeTTL = 5 * time.Minute

// Verification outcomes that are user errors, not infrastructure failures.
var (
	// ErrExpired means no code exists for the email (never requested, or
	// the TTL already removed it).
	ErrExpired = errors.New("verification code expired")

	// ErrMismatch means a code exists but the submitted one is wrong.
	ErrMismatch = errors.New("verification code does not match")
)

// Client is the subset of the DynamoDB API the repo uses.
type Client interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Repo stores verification codes keyed by email.
type Repo struct {
	db        Client
	table     string
	jwtSecret string
}

// New creates a verification repo.
func New(db Client, table, jwtSecret string) *Repo {
	return &Repo{db: db, table: table, jwtSecret: jwtSecret}
}

// NewFromConfig creates a repo backed by a real DynamoDB client.
func NewFromConfig(cfg aws.Config, table, jwtSecret string) *Repo {
	return New(dynamodb.NewFromConfig(cfg), table, jwtSecret)
}

type record struct {
	Email string `dynamodbav:"email"`
	Code  string `dynamodbav:"code"`
	TTL   int64  `dynamodbav:"ttl"`
}

// GenerateCode returns a 6-digit verification code.
func GenerateCode() string {
	return fmt.Sprintf("%06d", rand.IntN(1_000_000))
}

// CreateCode stores a fresh code for the email (overwriting any previous
// one) and returns it for delivery.
func (r *Repo) CreateCode(ctx context.Context, email string) (string, error) {
	code := GenerateCode()
	item, err := attributevalue.MarshalMap(record{
		Email: email,
		Code:  code,
		TTL:   time.Now().Add(CodeTTL).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshalling verification code: %w", err)
	}

	_, err = r.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.table),
		Item:      item,
	})
	if err != nil {
		return "", fmt.Errorf("storing verification code: %w", err)
	}
	return code, nil
}

// Verify checks the submitted code. On success the code is consumed and a
// signup token for the email is returned.
func (r *Repo) Verify(ctx context.Context, email, code string) (string, error) {
	key, err := attributevalue.MarshalMap(map[string]string{"email": email})
	if err != nil {
		return "", fmt.Errorf("marshalling verification key: %w", err)
	}

	out, err := r.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       key,
	})
	if err != nil {
		return "", fmt.Errorf("reading verification code: %w", err)
	}
	if out.Item == nil {
		return "", ErrExpired
	}

	var rec record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return "", fmt.Errorf("unmarshalling verification code: %w", err)
	}

	// DynamoDB TTL deletion lags; enforce expiry ourselves too.
	if time.Now().Unix() > rec.TTL {
		return "", ErrExpired
	}
	if rec.Code != code {
		return "", ErrMismatch
	}

	token, err := auth.GenerateSignupToken(r.jwtSecret, email)
	if err != nil {
		return "", fmt.Errorf("issuing signup token: %w", err)
	}

	_, err = r.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.table),
		Key:       key,
	})
	if err != nil {
		return "", fmt.Errorf("consuming verification code: %w", err)
	}

	return token, nil
}
