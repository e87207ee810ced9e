package auth_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	auth "github.com/amaranthine/auth-api"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type capturingSink struct {
	events []auth.ActivityEvent
}

func (c *capturingSink) Record(ctx context.Context, evt auth.ActivityEvent) error {
	c.events = append(c.events, evt)
	return nil
}

type capturingNotifier struct {
	published []auth.Notification
	fail      bool
}

func (c *capturingNotifier) Publish(ctx context.Context, n auth.Notification) error {
	if c.fail {
		return assert.AnError
	}
	c.published = append(c.published, n)
	return nil
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	// A single connection keeps every query on the same in-memory store.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	models := []any{
		(*auth.Org)(nil),
		(*auth.User)(nil),
		(*auth.Contact)(nil),
		(*auth.Membership)(nil),
		(*auth.Entity)(nil),
		(*auth.Affiliation)(nil),
		(*auth.Invitation)(nil),
		(*auth.InvitationMembership)(nil),
		(*auth.AffiliationInvitation)(nil),
		(*auth.Task)(nil),
		(*auth.ProductSubscription)(nil),
		(*auth.Affidavit)(nil),
		(*auth.AuditRecord)(nil),
	}
	for _, model := range models {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}
	return db
}

func seedOrg(t *testing.T, repos auth.RepositoryManager, name string, accessType auth.AccessType, status auth.OrgStatus) *auth.Org {
	t.Helper()
	org := &auth.Org{
		ID:         uuid.New(),
		Name:       name,
		StatusCode: status,
		AccessType: accessType,
		TypeCode:   auth.OrgTypeBasic,
	}
	_, err := repos.Orgs().Create(context.Background(), org)
	require.NoError(t, err)
	return org
}

func seedUser(t *testing.T, repos auth.RepositoryManager, username string, loginSource auth.LoginSource, verified bool) *auth.User {
	t.Helper()
	user := &auth.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        username + "@example.com",
		KeycloakGUID: uuid.New(),
		StatusCode:   auth.UserStatusActive,
		LoginSource:  loginSource,
		Verified:     verified,
	}
	_, err := repos.Users().Create(context.Background(), user)
	require.NoError(t, err)
	return user
}

func TestInvitationAcceptSpawnsStaffReview(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := auth.NewRepositoryManager(db)

	tokens := auth.NewTokenService(auth.Config{
		TokenSigningKey: []byte("integration-key"),
		TokenIssuer:     "auth-api-test",
	})
	notifier := &capturingNotifier{}
	sink := &capturingSink{}
	svc := auth.NewInvitationService(repos, tokens, notifier,
		auth.WithInvitationActivitySink(sink))

	org := seedOrg(t, repos, "Notary Office", auth.AccessTypeRegularBCeID, auth.OrgStatusActive)
	sender := seedUser(t, repos, "staff-sender", auth.LoginSourceStaff, true)

	invitation, err := svc.Create(ctx, sender, true, auth.CreateInvitationRequest{
		RecipientEmail: "invitee@example.com",
		Memberships: []auth.InvitationMembershipRequest{
			{OrgID: org.ID, Role: auth.MembershipTypeAdmin},
		},
	})
	require.NoError(t, err)
	require.Equal(t, auth.InvitationStatusPending, invitation.StatusCode)
	require.NotEmpty(t, invitation.Token)
	require.Len(t, notifier.published, 1)
	assert.Equal(t, auth.NotificationTeamInvitation, notifier.published[0].Type)

	// An unverified BCeID admin lands in staff review with one USER task.
	invitee := seedUser(t, repos, "bceid-admin", auth.LoginSourceBCeID, false)
	accepted, err := svc.Accept(ctx, invitation.ID, invitation.Token, invitee)
	require.NoError(t, err)
	assert.Equal(t, auth.InvitationStatusAccepted, accepted.StatusCode)

	membership, err := repos.Memberships().FindByOrgAndUser(ctx, org.ID, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.MembershipStatusPendingStaffReview, membership.StatusCode)

	open, err := repos.Tasks().ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, auth.TaskRelationshipUser, open[0].RelationshipType)
	assert.Equal(t, membership.ID, open[0].RelationshipID)

	// A second redemption reports the terminal state instead of creating
	// a duplicate membership.
	other := seedUser(t, repos, "second-user", auth.LoginSourceBCeID, false)
	_, err = svc.Accept(ctx, invitation.ID, invitation.Token, other)
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrInvitationActioned, err)
}

func TestInvitationAcceptGovMActivatesImmediately(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := auth.NewRepositoryManager(db)

	tokens := auth.NewTokenService(auth.Config{TokenSigningKey: []byte("integration-key")})
	sink := &capturingSink{}
	svc := auth.NewInvitationService(repos, tokens, &capturingNotifier{},
		auth.WithInvitationActivitySink(sink))

	org := seedOrg(t, repos, "Ministry Branch", auth.AccessTypeGovM, auth.OrgStatusPendingInvite)
	sender := seedUser(t, repos, "govm-staff", auth.LoginSourceStaff, true)

	invitation, err := svc.Create(ctx, sender, true, auth.CreateInvitationRequest{
		RecipientEmail: "gov-admin@example.com",
		Memberships: []auth.InvitationMembershipRequest{
			{OrgID: org.ID, Role: auth.MembershipTypeAdmin},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, auth.LoginSourceStaff, invitation.LoginSource)

	invitee := seedUser(t, repos, "gov-admin", auth.LoginSourceStaff, false)
	_, err = svc.Accept(ctx, invitation.ID, invitation.Token, invitee)
	require.NoError(t, err)

	membership, err := repos.Memberships().FindByOrgAndUser(ctx, org.ID, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.MembershipStatusActive, membership.StatusCode)

	// No staff task for auto-approved memberships.
	open, err := repos.Tasks().ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	require.Len(t, sink.events, 1)
	assert.Equal(t, auth.ActivityEventMembershipCreated, sink.events[0].EventType)
}

func TestInvitationAcceptRejectsWrongLoginSource(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := auth.NewRepositoryManager(db)

	tokens := auth.NewTokenService(auth.Config{TokenSigningKey: []byte("integration-key")})
	svc := auth.NewInvitationService(repos, tokens, &capturingNotifier{})

	org := seedOrg(t, repos, "Regular Co", auth.AccessTypeRegular, auth.OrgStatusActive)
	sender := seedUser(t, repos, "reg-staff", auth.LoginSourceStaff, true)

	invitation, err := svc.Create(ctx, sender, true, auth.CreateInvitationRequest{
		RecipientEmail: "someone@example.com",
		Memberships: []auth.InvitationMembershipRequest{
			{OrgID: org.ID, Role: auth.MembershipTypeUser},
		},
	})
	require.NoError(t, err)

	// REGULAR orgs require BCSC; a BCeID user cannot redeem.
	invitee := seedUser(t, repos, "wrong-idp", auth.LoginSourceBCeID, true)
	_, err = svc.Accept(ctx, invitation.ID, invitation.Token, invitee)
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrLoginSourceMismatch, err)
}

func TestInvitationCreateFailsWhenPublishFails(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := auth.NewRepositoryManager(db)

	tokens := auth.NewTokenService(auth.Config{TokenSigningKey: []byte("integration-key")})
	svc := auth.NewInvitationService(repos, tokens, &capturingNotifier{fail: true})

	org := seedOrg(t, repos, "Unreachable Inc", auth.AccessTypeRegular, auth.OrgStatusActive)
	sender := seedUser(t, repos, "fail-staff", auth.LoginSourceStaff, true)

	invitation, err := svc.Create(ctx, sender, true, auth.CreateInvitationRequest{
		RecipientEmail: "nobody@example.com",
		Memberships: []auth.InvitationMembershipRequest{
			{OrgID: org.ID, Role: auth.MembershipTypeUser},
		},
	})
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrNotificationFailure, err)

	// The row survives, marked FAILED.
	stored, lookupErr := repos.Invitations().FindByID(ctx, invitation.ID)
	require.NoError(t, lookupErr)
	assert.Equal(t, auth.InvitationStatusFailed, stored.StatusCode)

	// The org listing filters on status; empty means all.
	failed, err := repos.Invitations().ListByOrg(ctx, org.ID, auth.InvitationStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, invitation.ID, failed[0].ID)

	pending, err := repos.Invitations().ListByOrg(ctx, org.ID, auth.InvitationStatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := repos.Invitations().ListByOrg(ctx, org.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestInvitationAcceptAfterTTLReportsExpired(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := auth.NewRepositoryManager(db)

	tokens := auth.NewTokenService(auth.Config{TokenSigningKey: []byte("integration-key")})
	current := time.Now()
	svc := auth.NewInvitationService(repos, tokens, &capturingNotifier{},
		auth.WithInvitationClock(func() time.Time { return current }))

	org := seedOrg(t, repos, "Slow Movers Ltd", auth.AccessTypeRegular, auth.OrgStatusActive)
	sender := seedUser(t, repos, "expiry-staff", auth.LoginSourceStaff, true)
	invitee := seedUser(t, repos, "expiry-invitee", auth.LoginSourceBCSC, true)

	invitation, err := svc.Create(ctx, sender, true, auth.CreateInvitationRequest{
		RecipientEmail: "late@example.com",
		Memberships: []auth.InvitationMembershipRequest{
			{OrgID: org.ID, Role: auth.MembershipTypeUser},
		},
	})
	require.NoError(t, err)

	current = current.Add(8 * 24 * time.Hour)

	_, err = svc.Accept(ctx, invitation.ID, invitation.Token, invitee)
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrInvitationExpired, err)

	// Resend refreshes the sent date, reviving the invitation.
	resent, err := svc.Resend(ctx, invitation.ID, sender)
	require.NoError(t, err)

	accepted, err := svc.Accept(ctx, resent.ID, resent.Token, invitee)
	require.NoError(t, err)
	assert.Equal(t, auth.InvitationStatusAccepted, accepted.StatusCode)
}

func TestAffiliationInvitationLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := auth.NewRepositoryManager(db)

	tokens := auth.NewTokenService(auth.Config{TokenSigningKey: []byte("integration-key")})
	notifier := &capturingNotifier{}
	registry := stubRegistry{known: map[string]bool{"BC1234567": true}}
	svc := auth.NewAffiliationInvitationService(repos, tokens, notifier, registry)

	fromOrg := seedOrg(t, repos, "Holding Org", auth.AccessTypeRegular, auth.OrgStatusActive)
	toOrg := seedOrg(t, repos, "Receiving Org", auth.AccessTypeRegular, auth.OrgStatusActive)
	sender := seedUser(t, repos, "aff-sender", auth.LoginSourceBCSC, true)
	approver := seedUser(t, repos, "aff-approver", auth.LoginSourceBCSC, true)

	entity := &auth.Entity{
		ID:                 uuid.New(),
		BusinessIdentifier: "BC1234567",
		Name:               "Example Ventures",
	}
	_, err := repos.Entities().Create(ctx, entity)
	require.NoError(t, err)

	entityID := entity.ID
	_, err = repos.Contacts().Create(ctx, &auth.Contact{
		ID:       uuid.New(),
		EntityID: &entityID,
		Email:    "business@example.com",
	})
	require.NoError(t, err)

	invitation, err := svc.Create(ctx, sender, auth.CreateAffiliationInvitationRequest{
		FromOrgID:          fromOrg.ID,
		ToOrgID:            &toOrg.ID,
		BusinessIdentifier: "BC1234567",
		Type:               auth.AffiliationInvitationTypeEmail,
	})
	require.NoError(t, err)
	assert.Equal(t, auth.InvitationStatusPending, invitation.StatusCode)
	assert.Equal(t, "business@example.com", invitation.RecipientEmail)

	// A duplicate active invitation for the same triple is rejected.
	_, err = svc.Create(ctx, sender, auth.CreateAffiliationInvitationRequest{
		FromOrgID:          fromOrg.ID,
		ToOrgID:            &toOrg.ID,
		BusinessIdentifier: "BC1234567",
		Type:               auth.AffiliationInvitationTypeEmail,
	})
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrAffiliationInvitationExists, err)

	accepted, err := svc.Accept(ctx, invitation.ID, invitation.Token, approver)
	require.NoError(t, err)
	assert.Equal(t, auth.InvitationStatusAccepted, accepted.StatusCode)
	require.NotNil(t, accepted.ApproverID)
	assert.Equal(t, approver.ID, *accepted.ApproverID)

	affiliation, err := repos.Affiliations().FindByOrgAndEntity(ctx, fromOrg.ID, entity.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ID, affiliation.EntityID)

	// Accepting again reports the terminal state.
	_, err = svc.Accept(ctx, invitation.ID, invitation.Token, approver)
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrInvitationActioned, err)

	// Creating another invitation now trips the existing-affiliation guard.
	_, err = svc.Create(ctx, sender, auth.CreateAffiliationInvitationRequest{
		FromOrgID:          fromOrg.ID,
		ToOrgID:            &toOrg.ID,
		BusinessIdentifier: "BC1234567",
		Type:               auth.AffiliationInvitationTypeEmail,
	})
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrAffiliationExists, err)
}

func TestAffiliationRequestRefusal(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := auth.NewRepositoryManager(db)

	tokens := auth.NewTokenService(auth.Config{TokenSigningKey: []byte("integration-key")})
	notifier := &capturingNotifier{}
	registry := stubRegistry{known: map[string]bool{"BC7654321": true}}
	svc := auth.NewAffiliationInvitationService(repos, tokens, notifier, registry)

	fromOrg := seedOrg(t, repos, "Requesting Org", auth.AccessTypeRegular, auth.OrgStatusActive)
	toOrg := seedOrg(t, repos, "Current Holder", auth.AccessTypeRegular, auth.OrgStatusActive)
	sender := seedUser(t, repos, "req-sender", auth.LoginSourceBCSC, true)
	holderAdmin := seedUser(t, repos, "holder-admin", auth.LoginSourceBCSC, true)

	_, err := repos.Memberships().Create(ctx, &auth.Membership{
		ID:         uuid.New(),
		OrgID:      toOrg.ID,
		UserID:     holderAdmin.ID,
		TypeCode:   auth.MembershipTypeAdmin,
		StatusCode: auth.MembershipStatusActive,
	})
	require.NoError(t, err)

	entity := &auth.Entity{
		ID:                 uuid.New(),
		BusinessIdentifier: "BC7654321",
		Name:               "Requested Holdings",
	}
	_, err = repos.Entities().Create(ctx, entity)
	require.NoError(t, err)

	invitation, err := svc.Create(ctx, sender, auth.CreateAffiliationInvitationRequest{
		FromOrgID:          fromOrg.ID,
		ToOrgID:            &toOrg.ID,
		BusinessIdentifier: "BC7654321",
		Type:               auth.AffiliationInvitationTypeRequest,
	})
	require.NoError(t, err)
	// REQUEST invitations go to the holding org's admins.
	assert.Equal(t, holderAdmin.Email, invitation.RecipientEmail)

	refused, err := svc.Refuse(ctx, invitation.ID, holderAdmin)
	require.NoError(t, err)
	assert.Equal(t, auth.InvitationStatusFailed, refused.StatusCode)

	// No affiliation was created.
	_, err = repos.Affiliations().FindByOrgAndEntity(ctx, fromOrg.ID, entity.ID)
	require.Error(t, err)

	// Refusing twice reports the terminal state.
	_, err = svc.Refuse(ctx, invitation.ID, holderAdmin)
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrInvitationActioned, err)
}

func TestAffiliationInvitationReviveAfterExpiry(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := auth.NewRepositoryManager(db)

	tokens := auth.NewTokenService(auth.Config{TokenSigningKey: []byte("integration-key")})
	notifier := &capturingNotifier{}
	registry := stubRegistry{known: map[string]bool{"BC2468101": true}}
	current := time.Now()
	svc := auth.NewAffiliationInvitationService(repos, tokens, notifier, registry,
		auth.WithAffiliationClock(func() time.Time { return current }))

	fromOrg := seedOrg(t, repos, "Patient Holdings", auth.AccessTypeRegular, auth.OrgStatusActive)
	toOrg := seedOrg(t, repos, "Receiving Partners", auth.AccessTypeRegular, auth.OrgStatusActive)
	sender := seedUser(t, repos, "revive-sender", auth.LoginSourceBCSC, true)
	approver := seedUser(t, repos, "revive-approver", auth.LoginSourceBCSC, true)

	entity := &auth.Entity{
		ID:                 uuid.New(),
		BusinessIdentifier: "BC2468101",
		Name:               "Dormant Ventures",
	}
	_, err := repos.Entities().Create(ctx, entity)
	require.NoError(t, err)
	entityID := entity.ID
	_, err = repos.Contacts().Create(ctx, &auth.Contact{
		ID:       uuid.New(),
		EntityID: &entityID,
		Email:    "dormant@example.com",
	})
	require.NoError(t, err)

	invitation, err := svc.Create(ctx, sender, auth.CreateAffiliationInvitationRequest{
		FromOrgID:          fromOrg.ID,
		ToOrgID:            &toOrg.ID,
		BusinessIdentifier: "BC2468101",
		Type:               auth.AffiliationInvitationTypeEmail,
	})
	require.NoError(t, err)

	current = current.Add(8 * 24 * time.Hour)

	// Past its TTL the invitation reports EXPIRED and cannot be accepted.
	listed, err := svc.ListByOrg(ctx, fromOrg.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, auth.InvitationStatusExpired, listed[0].StatusCode)

	_, err = svc.Accept(ctx, invitation.ID, invitation.Token, approver)
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrInvitationExpired, err)

	// A retry regenerates the token and sent date, reviving the invitation.
	revived, err := svc.Update(ctx, invitation.ID, "", sender)
	require.NoError(t, err)
	require.NotNil(t, revived.SentDate)

	accepted, err := svc.Accept(ctx, invitation.ID, revived.Token, approver)
	require.NoError(t, err)
	assert.Equal(t, auth.InvitationStatusAccepted, accepted.StatusCode)
}

func TestTaskApprovalActivatesOrg(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := auth.NewRepositoryManager(db)

	orgSvc := auth.NewOrgService(repos)
	taskSvc := auth.NewTaskService(repos, &capturingNotifier{})

	creator := seedUser(t, repos, "bceid-owner", auth.LoginSourceBCeID, false)
	staff := seedUser(t, repos, "reviewer", auth.LoginSourceStaff, true)

	org, err := orgSvc.Create(ctx, creator, auth.CreateOrgRequest{
		Name:       "Pending Notaries",
		AccessType: auth.AccessTypeRegularBCeID,
	})
	require.NoError(t, err)
	require.Equal(t, auth.OrgStatusPendingStaffReview, org.StatusCode)

	open, err := repos.Tasks().ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, auth.TaskRelationshipOrg, open[0].RelationshipType)

	updated, err := taskSvc.Update(ctx, open[0].ID, auth.TaskUpdate{
		Status:             auth.TaskStatusCompleted,
		RelationshipStatus: auth.OrgStatusActive,
	}, staff)
	require.NoError(t, err)
	assert.Equal(t, auth.TaskStatusCompleted, updated.StatusCode)

	stored, err := repos.Orgs().FindByID(ctx, org.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.OrgStatusActive, stored.StatusCode)

	// The owner's membership and verified flag resolve with the review.
	membership, err := repos.Memberships().FindByOrgAndUser(ctx, org.ID, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.MembershipStatusActive, membership.StatusCode)

	verified, err := repos.Users().FindByID(ctx, creator.ID)
	require.NoError(t, err)
	assert.True(t, verified.Verified)

	// Completed tasks reject further updates.
	_, err = taskSvc.Update(ctx, open[0].ID, auth.TaskUpdate{
		Status: auth.TaskStatusHold,
	}, staff)
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrInvalidStatusTransition, err)
}

func TestProductSubscriptionReviewCascade(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := auth.NewRepositoryManager(db)

	productSvc := auth.NewProductService(repos)
	taskSvc := auth.NewTaskService(repos, &capturingNotifier{})

	actor := seedUser(t, repos, "product-owner", auth.LoginSourceBCSC, true)
	staff := seedUser(t, repos, "product-reviewer", auth.LoginSourceStaff, true)
	org := seedOrg(t, repos, "Product Org", auth.AccessTypeRegular, auth.OrgStatusActive)

	parent, err := productSvc.Subscribe(ctx, org.ID, auth.SubscribeRequest{ProductCode: "PPR"}, actor)
	require.NoError(t, err)
	require.Equal(t, auth.ProductStatusPendingStaffReview, parent.StatusCode)

	child, err := productSvc.Subscribe(ctx, org.ID, auth.SubscribeRequest{
		ProductCode:       "PPR_EXTRA",
		ParentProductCode: "PPR",
	}, actor)
	require.NoError(t, err)

	task, err := repos.Tasks().FindOpenForRelationship(ctx, auth.TaskRelationshipProduct, child.ID)
	require.NoError(t, err)

	_, err = taskSvc.Update(ctx, task.ID, auth.TaskUpdate{
		Status:             auth.TaskStatusCompleted,
		RelationshipStatus: auth.ProductStatusActive,
	}, staff)
	require.NoError(t, err)

	// Approving the child cascades to the not-yet-active parent.
	storedChild, err := repos.ProductSubscriptions().FindByID(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.ProductStatusActive, storedChild.StatusCode)

	storedParent, err := repos.ProductSubscriptions().FindByID(ctx, parent.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.ProductStatusActive, storedParent.StatusCode)
}

func TestRemoveMemberGuardsLastAdmin(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := auth.NewRepositoryManager(db)
	orgSvc := auth.NewOrgService(repos)

	owner := seedUser(t, repos, "sole-owner", auth.LoginSourceBCSC, true)
	member := seedUser(t, repos, "plain-member", auth.LoginSourceBCSC, true)

	org, err := orgSvc.Create(ctx, owner, auth.CreateOrgRequest{Name: "Guarded Org"})
	require.NoError(t, err)

	_, err = repos.Memberships().Create(ctx, &auth.Membership{
		ID:         uuid.New(),
		OrgID:      org.ID,
		UserID:     member.ID,
		TypeCode:   auth.MembershipTypeUser,
		StatusCode: auth.MembershipStatusActive,
	})
	require.NoError(t, err)

	// The only active owner cannot leave while another member is active.
	err = orgSvc.RemoveMember(ctx, org.ID, owner.ID, owner)
	require.Error(t, err)
	assertSameTextCode(t, auth.ErrLastActiveAdmin, err)

	// Removing the plain member is fine, and then the owner can go too.
	require.NoError(t, orgSvc.RemoveMember(ctx, org.ID, member.ID, owner))
	require.NoError(t, orgSvc.RemoveMember(ctx, org.ID, owner.ID, owner))
}

func TestAuditTrailVersionsPerEntity(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repos := auth.NewRepositoryManager(db)
	auditor := auth.NewAuditor(db)

	subject := uuid.New()
	actor := auth.ActorRef{ID: uuid.New().String(), Type: "user"}

	err := repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := auditor.RecordTx(ctx, tx, "org", subject, "org.create", actor, nil); err != nil {
			return err
		}
		return auditor.RecordTx(ctx, tx, "org", subject, "org.status.ACTIVE", actor, nil)
	})
	require.NoError(t, err)

	var versions []int64
	err = db.NewSelect().Model((*auth.AuditRecord)(nil)).
		Column("version").
		Where("entity_type = ?", "org").
		Where("entity_id = ?", subject).
		Order("version ASC").
		Scan(ctx, &versions)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, versions)
}

type stubRegistry struct {
	known map[string]bool
}

func (s stubRegistry) GetBusinessDetails(ctx context.Context, identifier string) (*auth.BusinessDetails, error) {
	if !s.known[identifier] {
		return nil, auth.ErrBusinessNotFound
	}
	return &auth.BusinessDetails{Identifier: identifier, LegalName: "Stub Business"}, nil
}

func (s stubRegistry) GetNameRequestDetails(ctx context.Context, nrNumber string) (*auth.NameRequestDetails, error) {
	return &auth.NameRequestDetails{Number: nrNumber, State: "APPROVED"}, nil
}
