package users

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tvm/pkg/identity"
)

type fakeCognito struct {
	groupMembers map[string][]types.UserType

	listCalls    []*cognitoidentityprovider.ListUsersInGroupInput
	created      []*cognitoidentityprovider.AdminCreateUserInput
	grouped      []*cognitoidentityprovider.AdminAddUserToGroupInput
	updated      []*cognitoidentityprovider.AdminUpdateUserAttributesInput
	disabled     []*cognitoidentityprovider.AdminDisableUserInput
}

func (f *fakeCognito) ListUsersInGroup(_ context.Context, in *cognitoidentityprovider.ListUsersInGroupInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ListUsersInGroupOutput, error) {
	f.listCalls = append(f.listCalls, in)
	return &cognitoidentityprovider.ListUsersInGroupOutput{
		Users: f.groupMembers[aws.ToString(in.GroupName)],
	}, nil
}

func (f *fakeCognito) AdminCreateUser(_ context.Context, in *cognitoidentityprovider.AdminCreateUserInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminCreateUserOutput, error) {
	f.created = append(f.created, in)
	return &cognitoidentityprovider.AdminCreateUserOutput{}, nil
}

func (f *fakeCognito) AdminAddUserToGroup(_ context.Context, in *cognitoidentityprovider.AdminAddUserToGroupInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminAddUserToGroupOutput, error) {
	f.grouped = append(f.grouped, in)
	return &cognitoidentityprovider.AdminAddUserToGroupOutput{}, nil
}

func (f *fakeCognito) AdminUpdateUserAttributes(_ context.Context, in *cognitoidentityprovider.AdminUpdateUserAttributesInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminUpdateUserAttributesOutput, error) {
	f.updated = append(f.updated, in)
	return &cognitoidentityprovider.AdminUpdateUserAttributesOutput{}, nil
}

func (f *fakeCognito) AdminDisableUser(_ context.Context, in *cognitoidentityprovider.AdminDisableUserInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminDisableUserOutput, error) {
	f.disabled = append(f.disabled, in)
	return &cognitoidentityprovider.AdminDisableUserOutput{}, nil
}

func poolUser(username, email, role string) types.UserType {
	now := time.Now()
	return types.UserType{
		Username:             aws.String(username),
		Enabled:              true,
		UserStatus:           types.UserStatusTypeConfirmed,
		UserCreateDate:       aws.Time(now),
		UserLastModifiedDate: aws.Time(now),
		Attributes: []types.AttributeType{
			{Name: aws.String(identity.ClaimEmail), Value: aws.String(email)},
			{Name: aws.String(identity.ClaimUserRole), Value: aws.String(role)},
		},
	}
}

func adminOf(tenant string) identity.TenantIdentity {
	return identity.TenantIdentity{
		UserID:     "admin-sub",
		TenantID:   tenant,
		TenantTier: "premium",
		TenantName: "Acme",
		UserRole:   "TenantAdmin",
	}
}

func TestListScopesToTenantGroup(t *testing.T) {
	fake := &fakeCognito{groupMembers: map[string][]types.UserType{
		"t-42":    {poolUser("alice", "alice@acme.example", "TenantUser")},
		"t-other": {poolUser("mallory", "m@other.example", "TenantAdmin")},
	}}
	svc := NewService(fake, "us-east-1_Abc123", zap.NewNop().Sugar())

	users, err := svc.List(context.Background(), adminOf("t-42"))
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "alice@acme.example", users[0].Email)
	assert.Equal(t, "TenantUser", users[0].UserRole)
	assert.True(t, users[0].Enabled)

	require.Len(t, fake.listCalls, 1)
	assert.Equal(t, "t-42", aws.ToString(fake.listCalls[0].GroupName))
}

func TestCreateStampsTenantClaimsAndGroup(t *testing.T) {
	fake := &fakeCognito{groupMembers: map[string][]types.UserType{}}
	svc := NewService(fake, "us-east-1_Abc123", zap.NewNop().Sugar())

	require.NoError(t, svc.Create(context.Background(), adminOf("t-42"), "bob", "bob@acme.example", "TenantUser"))

	require.Len(t, fake.created, 1)
	attrs := map[string]string{}
	for _, a := range fake.created[0].UserAttributes {
		attrs[aws.ToString(a.Name)] = aws.ToString(a.Value)
	}
	assert.Equal(t, "t-42", attrs[identity.ClaimTenantID])
	assert.Equal(t, "premium", attrs[identity.ClaimTenantTier])
	assert.Equal(t, "TenantUser", attrs[identity.ClaimUserRole])

	require.Len(t, fake.grouped, 1)
	assert.Equal(t, "t-42", aws.ToString(fake.grouped[0].GroupName))
	assert.Equal(t, "bob", aws.ToString(fake.grouped[0].Username))
}

func TestUpdateRejectsUserOutsideTenant(t *testing.T) {
	fake := &fakeCognito{groupMembers: map[string][]types.UserType{
		"t-42": {poolUser("alice", "alice@acme.example", "TenantUser")},
	}}
	svc := NewService(fake, "us-east-1_Abc123", zap.NewNop().Sugar())

	err := svc.Update(context.Background(), adminOf("t-42"), "mallory", "m@evil.example", "")
	require.Error(t, err)
	assert.Empty(t, fake.updated)
}

func TestUpdateMemberAttributes(t *testing.T) {
	fake := &fakeCognito{groupMembers: map[string][]types.UserType{
		"t-42": {poolUser("alice", "alice@acme.example", "TenantUser")},
	}}
	svc := NewService(fake, "us-east-1_Abc123", zap.NewNop().Sugar())

	require.NoError(t, svc.Update(context.Background(), adminOf("t-42"), "alice", "", "TenantAdmin"))
	require.Len(t, fake.updated, 1)
	require.Len(t, fake.updated[0].UserAttributes, 1)
	assert.Equal(t, identity.ClaimUserRole, aws.ToString(fake.updated[0].UserAttributes[0].Name))
}

func TestDisableRejectsUserOutsideTenant(t *testing.T) {
	fake := &fakeCognito{groupMembers: map[string][]types.UserType{
		"t-42": {poolUser("alice", "alice@acme.example", "TenantUser")},
	}}
	svc := NewService(fake, "us-east-1_Abc123", zap.NewNop().Sugar())

	require.Error(t, svc.Disable(context.Background(), adminOf("t-42"), "mallory"))
	assert.Empty(t, fake.disabled)

	require.NoError(t, svc.Disable(context.Background(), adminOf("t-42"), "alice"))
	require.Len(t, fake.disabled, 1)
	assert.Equal(t, "alice", aws.ToString(fake.disabled[0].Username))
}
