// Package users manages the tenant's users in the shared user pool. Users
// are grouped by tenant id; every operation is constrained to the caller's
// group, and the tenant id claim is stamped onto created users.
package users

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"go.uber.org/zap"

	"tvm/pkg/identity"
)

type User struct {
	Username string    `json:"username"`
	Email    string    `json:"email"`
	UserRole string    `json:"userRole"`
	Status   string    `json:"status"`
	Enabled  bool      `json:"enabled"`
	Created  time.Time `json:"created"`
	Modified time.Time `json:"modified"`
}

// CognitoAPI is the admin client slice the service uses.
type CognitoAPI interface {
	ListUsersInGroup(ctx context.Context, params *cognitoidentityprovider.ListUsersInGroupInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ListUsersInGroupOutput, error)
	AdminCreateUser(ctx context.Context, params *cognitoidentityprovider.AdminCreateUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminCreateUserOutput, error)
	AdminAddUserToGroup(ctx context.Context, params *cognitoidentityprovider.AdminAddUserToGroupInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminAddUserToGroupOutput, error)
	AdminUpdateUserAttributes(ctx context.Context, params *cognitoidentityprovider.AdminUpdateUserAttributesInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminUpdateUserAttributesOutput, error)
	AdminDisableUser(ctx context.Context, params *cognitoidentityprovider.AdminDisableUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminDisableUserOutput, error)
}

type Service struct {
	api        CognitoAPI
	userPoolID string
	log        *zap.SugaredLogger
}

func NewService(api CognitoAPI, userPoolID string, log *zap.SugaredLogger) *Service {
	return &Service{api: api, userPoolID: userPoolID, log: log}
}

func (s *Service) List(ctx context.Context, id identity.TenantIdentity) ([]User, error) {
	out, err := s.api.ListUsersInGroup(ctx, &cognitoidentityprovider.ListUsersInGroupInput{
		UserPoolId: aws.String(s.userPoolID),
		GroupName:  aws.String(id.TenantID),
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]User, 0, len(out.Users))
	for _, u := range out.Users {
		user := User{
			Username: aws.ToString(u.Username),
			Status:   string(u.UserStatus),
			Enabled:  u.Enabled,
			Created:  aws.ToTime(u.UserCreateDate),
			Modified: aws.ToTime(u.UserLastModifiedDate),
		}
		for _, attr := range u.Attributes {
			switch aws.ToString(attr.Name) {
			case identity.ClaimEmail:
				user.Email = aws.ToString(attr.Value)
			case identity.ClaimUserRole:
				user.UserRole = aws.ToString(attr.Value)
			}
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Service) Create(ctx context.Context, id identity.TenantIdentity, username, email, role string) error {
	_, err := s.api.AdminCreateUser(ctx, &cognitoidentityprovider.AdminCreateUserInput{
		UserPoolId: aws.String(s.userPoolID),
		Username:   aws.String(username),
		UserAttributes: []types.AttributeType{
			{Name: aws.String(identity.ClaimEmail), Value: aws.String(email)},
			{Name: aws.String("email_verified"), Value: aws.String("true")},
			{Name: aws.String(identity.ClaimUserRole), Value: aws.String(role)},
			{Name: aws.String(identity.ClaimTenantID), Value: aws.String(id.TenantID)},
			{Name: aws.String(identity.ClaimTenantTier), Value: aws.String(id.TenantTier)},
			{Name: aws.String(identity.ClaimTenantName), Value: aws.String(id.TenantName)},
		},
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	_, err = s.api.AdminAddUserToGroup(ctx, &cognitoidentityprovider.AdminAddUserToGroupInput{
		UserPoolId: aws.String(s.userPoolID),
		Username:   aws.String(username),
		GroupName:  aws.String(id.TenantID),
	})
	if err != nil {
		return fmt.Errorf("add user to tenant group: %w", err)
	}
	s.log.Infow("user created", "tenant", id.TenantID, "username", username)
	return nil
}

func (s *Service) Update(ctx context.Context, id identity.TenantIdentity, username, email, role string) error {
	var attrs []types.AttributeType
	if email != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String(identity.ClaimEmail), Value: aws.String(email)})
	}
	if role != "" {
		attrs = append(attrs, types.AttributeType{Name: aws.String(identity.ClaimUserRole), Value: aws.String(role)})
	}
	if len(attrs) == 0 {
		return nil
	}
	if err := s.inTenantGroup(ctx, id, username); err != nil {
		return err
	}
	_, err := s.api.AdminUpdateUserAttributes(ctx, &cognitoidentityprovider.AdminUpdateUserAttributesInput{
		UserPoolId:     aws.String(s.userPoolID),
		Username:       aws.String(username),
		UserAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *Service) Disable(ctx context.Context, id identity.TenantIdentity, username string) error {
	if err := s.inTenantGroup(ctx, id, username); err != nil {
		return err
	}
	_, err := s.api.AdminDisableUser(ctx, &cognitoidentityprovider.AdminDisableUserInput{
		UserPoolId: aws.String(s.userPoolID),
		Username:   aws.String(username),
	})
	if err != nil {
		return fmt.Errorf("disable user: %w", err)
	}
	s.log.Infow("user disabled", "tenant", id.TenantID, "username", username)
	return nil
}

// inTenantGroup confirms the target user belongs to the caller's tenant
// before any mutation; the admin API itself is pool-wide.
func (s *Service) inTenantGroup(ctx context.Context, id identity.TenantIdentity, username string) error {
	users, err := s.List(ctx, id)
	if err != nil {
		return err
	}
	for _, u := range users {
		if u.Username == username {
			return nil
		}
	}
	return fmt.Errorf("user %q not in tenant %s", username, id.TenantID)
}
