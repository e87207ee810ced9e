package auth

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ClaimsLocalKey is where the authentication middleware stores the parsed
// token claims on the request context.
const ClaimsLocalKey = "auth_claims"

// APIController exposes the account services over JSON REST.
type APIController struct {
	Logger       Logger
	Repo         RepositoryManager
	Gate         *AuthGate
	Orgs         *OrgService
	Invitations  *InvitationService
	Affiliations *AffiliationInvitationService
	Tasks        *TaskService
	Products     *ProductService
}

// APIControllerOption customizes controller construction.
type APIControllerOption func(*APIController) *APIController

// WithAPILogger overrides the controller logger.
func WithAPILogger(logger Logger) APIControllerOption {
	return func(c *APIController) *APIController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// WithAPIRepository sets the repository manager.
func WithAPIRepository(repo RepositoryManager) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Repo = repo
		return c
	}
}

// WithAPIGate sets the authorization gate.
func WithAPIGate(gate *AuthGate) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Gate = gate
		return c
	}
}

// WithAPIServices sets every domain service in one call.
func WithAPIServices(orgs *OrgService, invitations *InvitationService, affiliations *AffiliationInvitationService, tasks *TaskService, products *ProductService) APIControllerOption {
	return func(c *APIController) *APIController {
		c.Orgs = orgs
		c.Invitations = invitations
		c.Affiliations = affiliations
		c.Tasks = tasks
		c.Products = products
		return c
	}
}

// NewAPIController wires the REST controller. The repository manager, gate
// and every service are required.
func NewAPIController(opts ...APIControllerOption) *APIController {
	c := &APIController{
		Logger: defLogger{},
	}
	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in API controller...")
	}
	if c.Gate == nil {
		panic("Missing AuthGate in API controller...")
	}

	return c
}

// RegisterAPIRoutes mounts every resource on the app.
func RegisterAPIRoutes(app fiber.Router, opts ...APIControllerOption) {
	c := NewAPIController(opts...)

	orgs := app.Group("/orgs")
	orgs.Post("/", c.CreateOrg)
	orgs.Get("/:orgID", c.GetOrg)
	orgs.Patch("/:orgID/status", c.UpdateOrgStatus)
	orgs.Delete("/:orgID", c.DeactivateOrg)
	orgs.Delete("/:orgID/members/:userID", c.RemoveMember)
	orgs.Get("/:orgID/affiliations", c.ListAffiliations)
	orgs.Get("/:orgID/invitations", c.ListInvitations)
	orgs.Get("/:orgID/affiliation-invitations", c.ListAffiliationInvitations)
	orgs.Get("/:orgID/products", c.ListProducts)
	orgs.Post("/:orgID/products", c.Subscribe)

	invitations := app.Group("/invitations")
	invitations.Post("/", c.CreateInvitation)
	invitations.Patch("/:id", c.ResendInvitation)
	invitations.Get("/tokens/:token", c.ValidateInvitationToken)
	invitations.Put("/:id/token/:token", c.AcceptInvitation)
	invitations.Delete("/:id", c.WithdrawInvitation)

	affiliationInvitations := app.Group("/affiliation-invitations")
	affiliationInvitations.Post("/", c.CreateAffiliationInvitation)
	affiliationInvitations.Put("/:id/token/:token", c.AcceptAffiliationInvitation)
	affiliationInvitations.Patch("/:id", c.UpdateAffiliationInvitation)
	affiliationInvitations.Patch("/:id/authorization", c.RefuseAffiliationInvitation)
	affiliationInvitations.Delete("/:id", c.DeleteAffiliationInvitation)

	tasks := app.Group("/tasks")
	tasks.Get("/", c.ListTasks)
	tasks.Get("/:id", c.GetTask)
	tasks.Patch("/:id", c.UpdateTask)
}

// ----- orgs -----

// CreateOrgPayload is the account creation body.
type CreateOrgPayload struct {
	Name       string `json:"name"`
	BranchName string `json:"branchName"`
	AccessType string `json:"accessType"`
	TypeCode   string `json:"typeCode"`
}

// Validate runs validation rules.
func (p CreateOrgPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(2, 250)),
		validation.Field(&p.BranchName, validation.Length(0, 100)),
	)
}

func (a *APIController) CreateOrg(ctx *fiber.Ctx) error {
	claims, user, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(CreateOrgPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badBody(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return a.invalid(ctx, err)
	}

	accessType := payload.AccessType
	if accessType == "" && claims.LoginSource == LoginSourceBCeID {
		accessType = AccessTypeRegularBCeID
	}

	org, err := a.Orgs.Create(ctx.Context(), user, CreateOrgRequest{
		Name:       payload.Name,
		BranchName: payload.BranchName,
		AccessType: accessType,
		TypeCode:   payload.TypeCode,
	})
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(org)
}

func (a *APIController) GetOrg(ctx *fiber.Ctx) error {
	claims, _, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	orgID, err := pathUUID(ctx, "orgID")
	if err != nil {
		return a.fail(ctx, err)
	}
	if err := a.Gate.Check(ctx.Context(), claims, AuthCheck{OrgID: orgID}); err != nil {
		return a.fail(ctx, err)
	}

	org, err := a.Orgs.Get(ctx.Context(), orgID)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(org)
}

// OrgStatusPayload is the status transition body.
type OrgStatusPayload struct {
	Status string `json:"status"`
}

// Validate runs validation rules.
func (p OrgStatusPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Status, validation.Required),
	)
}

func (a *APIController) UpdateOrgStatus(ctx *fiber.Ctx) error {
	claims, user, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	if !claims.IsStaff() {
		return a.fail(ctx, ErrPermissionDenied)
	}
	orgID, err := pathUUID(ctx, "orgID")
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(OrgStatusPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badBody(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return a.invalid(ctx, err)
	}

	org, err := a.Orgs.UpdateStatus(ctx.Context(), orgID, payload.Status, user)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(org)
}

func (a *APIController) DeactivateOrg(ctx *fiber.Ctx) error {
	claims, user, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	orgID, err := pathUUID(ctx, "orgID")
	if err != nil {
		return a.fail(ctx, err)
	}
	check := AuthCheck{OrgID: orgID, OneOfRoles: []MembershipType{MembershipTypeOwner, MembershipTypeAdmin}}
	if err := a.Gate.Check(ctx.Context(), claims, check); err != nil {
		return a.fail(ctx, err)
	}

	if err := a.Orgs.Deactivate(ctx.Context(), orgID, user); err != nil {
		return a.fail(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (a *APIController) RemoveMember(ctx *fiber.Ctx) error {
	claims, user, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	orgID, err := pathUUID(ctx, "orgID")
	if err != nil {
		return a.fail(ctx, err)
	}
	userID, err := pathUUID(ctx, "userID")
	if err != nil {
		return a.fail(ctx, err)
	}

	// Members can always take themselves out; removing others needs an
	// admin-level role.
	if user.ID != userID {
		check := AuthCheck{OrgID: orgID, OneOfRoles: []MembershipType{
			MembershipTypeOwner, MembershipTypeAdmin, MembershipTypeCoordinator,
		}}
		if err := a.Gate.Check(ctx.Context(), claims, check); err != nil {
			return a.fail(ctx, err)
		}
	}

	if err := a.Orgs.RemoveMember(ctx.Context(), orgID, userID, user); err != nil {
		return a.fail(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (a *APIController) ListAffiliations(ctx *fiber.Ctx) error {
	claims, _, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	orgID, err := pathUUID(ctx, "orgID")
	if err != nil {
		return a.fail(ctx, err)
	}
	if err := a.Gate.Check(ctx.Context(), claims, AuthCheck{OrgID: orgID}); err != nil {
		return a.fail(ctx, err)
	}

	records, err := a.Orgs.ListAffiliations(ctx.Context(), orgID)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(fiber.Map{"affiliations": records})
}

// ----- products -----

// SubscribePayload is the product subscription body.
type SubscribePayload struct {
	ProductCode       string `json:"productCode"`
	ParentProductCode string `json:"parentProductCode"`
}

// Validate runs validation rules.
func (p SubscribePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.ProductCode, validation.Required, validation.Length(1, 50)),
	)
}

func (a *APIController) ListProducts(ctx *fiber.Ctx) error {
	claims, _, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	orgID, err := pathUUID(ctx, "orgID")
	if err != nil {
		return a.fail(ctx, err)
	}
	if err := a.Gate.Check(ctx.Context(), claims, AuthCheck{OrgID: orgID}); err != nil {
		return a.fail(ctx, err)
	}

	records, err := a.Products.ListByOrg(ctx.Context(), orgID)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(fiber.Map{"subscriptions": records})
}

func (a *APIController) Subscribe(ctx *fiber.Ctx) error {
	claims, user, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	orgID, err := pathUUID(ctx, "orgID")
	if err != nil {
		return a.fail(ctx, err)
	}
	check := AuthCheck{OrgID: orgID, OneOfRoles: []MembershipType{MembershipTypeOwner, MembershipTypeAdmin}}
	if err := a.Gate.Check(ctx.Context(), claims, check); err != nil {
		return a.fail(ctx, err)
	}

	payload := new(SubscribePayload)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badBody(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return a.invalid(ctx, err)
	}

	sub, err := a.Products.Subscribe(ctx.Context(), orgID, SubscribeRequest{
		ProductCode:       payload.ProductCode,
		ParentProductCode: payload.ParentProductCode,
	}, user)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(sub)
}

// ----- team invitations -----

// InvitationMembershipPayload is one org+role grant in an invitation body.
type InvitationMembershipPayload struct {
	OrgID string `json:"orgId"`
	Role  string `json:"membershipType"`
}

// CreateInvitationPayload is the team invitation body.
type CreateInvitationPayload struct {
	RecipientEmail string                        `json:"recipientEmail"`
	Memberships    []InvitationMembershipPayload `json:"membership"`
}

// Validate runs validation rules.
func (p CreateInvitationPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.RecipientEmail, validation.Required, is.Email),
		validation.Field(&p.Memberships, validation.Required, validation.Length(1, 0)),
	)
}

func (a *APIController) CreateInvitation(ctx *fiber.Ctx) error {
	claims, user, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(CreateInvitationPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badBody(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return a.invalid(ctx, err)
	}

	req := CreateInvitationRequest{RecipientEmail: payload.RecipientEmail}
	for _, m := range payload.Memberships {
		orgID, err := uuid.Parse(m.OrgID)
		if err != nil {
			return a.invalid(ctx, err)
		}
		if !ValidMembershipType(m.Role) {
			return a.fail(ctx, goerrors.New("unknown membership type", goerrors.CategoryValidation).
				WithCode(goerrors.CodeBadRequest))
		}
		req.Memberships = append(req.Memberships, InvitationMembershipRequest{OrgID: orgID, Role: m.Role})
	}

	invitation, err := a.Invitations.Create(ctx.Context(), user, claims.IsStaff(), req)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(invitation)
}

func (a *APIController) ListInvitations(ctx *fiber.Ctx) error {
	claims, _, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	orgID, err := pathUUID(ctx, "orgID")
	if err != nil {
		return a.fail(ctx, err)
	}
	check := AuthCheck{OrgID: orgID, OneOfRoles: []MembershipType{
		MembershipTypeOwner, MembershipTypeAdmin, MembershipTypeCoordinator,
	}}
	if err := a.Gate.Check(ctx.Context(), claims, check); err != nil {
		return a.fail(ctx, err)
	}

	status := ctx.Query("status")
	if status != "" && !ValidInvitationStatus(status) {
		return a.fail(ctx, goerrors.New("unknown invitation status", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest))
	}

	records, err := a.Repo.Invitations().ListByOrg(ctx.Context(), orgID, status)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(fiber.Map{"invitations": records})
}

func (a *APIController) ResendInvitation(ctx *fiber.Ctx) error {
	_, user, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	id, err := pathUUID(ctx, "id")
	if err != nil {
		return a.fail(ctx, err)
	}

	invitation, err := a.Invitations.Resend(ctx.Context(), id, user)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(invitation)
}

func (a *APIController) ValidateInvitationToken(ctx *fiber.Ctx) error {
	invitation, err := a.Invitations.ResolveToken(ctx.Context(), ctx.Params("token"))
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(invitation)
}

func (a *APIController) AcceptInvitation(ctx *fiber.Ctx) error {
	_, user, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	id, err := pathUUID(ctx, "id")
	if err != nil {
		return a.fail(ctx, err)
	}

	invitation, err := a.Invitations.Accept(ctx.Context(), id, ctx.Params("token"), user)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(invitation)
}

func (a *APIController) WithdrawInvitation(ctx *fiber.Ctx) error {
	claims, user, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	id, err := pathUUID(ctx, "id")
	if err != nil {
		return a.fail(ctx, err)
	}

	if err := a.Invitations.Withdraw(ctx.Context(), id, user, claims.IsStaff()); err != nil {
		return a.fail(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// ----- affiliation invitations -----

// CreateAffiliationInvitationPayload is the affiliation invitation body.
type CreateAffiliationInvitationPayload struct {
	FromOrgID          string `json:"fromOrgId"`
	ToOrgID            string `json:"toOrgId"`
	BusinessIdentifier string `json:"businessIdentifier"`
	Type               string `json:"type"`
	AdditionalMessage  string `json:"additionalMessage"`
}

// Validate runs validation rules.
func (p CreateAffiliationInvitationPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FromOrgID, validation.Required, is.UUIDv4),
		validation.Field(&p.ToOrgID, is.UUIDv4),
		validation.Field(&p.BusinessIdentifier, validation.Required, validation.Length(1, 20)),
		validation.Field(&p.Type, validation.In(
			AffiliationInvitationTypeEmail,
			AffiliationInvitationTypeRequest,
		)),
		validation.Field(&p.AdditionalMessage, validation.Length(0, 4000)),
	)
}

func (a *APIController) CreateAffiliationInvitation(ctx *fiber.Ctx) error {
	claims, user, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(CreateAffiliationInvitationPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badBody(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return a.invalid(ctx, err)
	}

	fromOrgID, err := uuid.Parse(payload.FromOrgID)
	if err != nil {
		return a.invalid(ctx, err)
	}
	check := AuthCheck{OrgID: fromOrgID, OneOfRoles: []MembershipType{
		MembershipTypeOwner, MembershipTypeAdmin, MembershipTypeCoordinator,
	}}
	if err := a.Gate.Check(ctx.Context(), claims, check); err != nil {
		return a.fail(ctx, err)
	}

	req := CreateAffiliationInvitationRequest{
		FromOrgID:          fromOrgID,
		BusinessIdentifier: payload.BusinessIdentifier,
		Type:               payload.Type,
		AdditionalMessage:  payload.AdditionalMessage,
	}
	if payload.ToOrgID != "" {
		toOrgID, err := uuid.Parse(payload.ToOrgID)
		if err != nil {
			return a.invalid(ctx, err)
		}
		req.ToOrgID = &toOrgID
	}

	invitation, err := a.Affiliations.Create(ctx.Context(), user, req)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.Status(fiber.StatusCreated).JSON(invitation)
}

func (a *APIController) ListAffiliationInvitations(ctx *fiber.Ctx) error {
	claims, _, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	orgID, err := pathUUID(ctx, "orgID")
	if err != nil {
		return a.fail(ctx, err)
	}
	if err := a.Gate.Check(ctx.Context(), claims, AuthCheck{OrgID: orgID}); err != nil {
		return a.fail(ctx, err)
	}

	records, err := a.Affiliations.ListByOrg(ctx.Context(), orgID)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(fiber.Map{"affiliationInvitations": records})
}

func (a *APIController) AcceptAffiliationInvitation(ctx *fiber.Ctx) error {
	_, user, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	id, err := pathUUID(ctx, "id")
	if err != nil {
		return a.fail(ctx, err)
	}

	invitation, err := a.Affiliations.Accept(ctx.Context(), id, ctx.Params("token"), user)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(invitation)
}

// AffiliationInvitationStatusPayload carries the requested status change;
// empty status means retry/resend.
type AffiliationInvitationStatusPayload struct {
	Status string `json:"status"`
}

// Validate runs validation rules.
func (p AffiliationInvitationStatusPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Status, validation.In(
			InvitationStatusPending,
			InvitationStatusExpired,
		)),
	)
}

func (a *APIController) UpdateAffiliationInvitation(ctx *fiber.Ctx) error {
	_, user, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	id, err := pathUUID(ctx, "id")
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(AffiliationInvitationStatusPayload)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badBody(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return a.invalid(ctx, err)
	}

	invitation, err := a.Affiliations.Update(ctx.Context(), id, payload.Status, user)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(invitation)
}

func (a *APIController) RefuseAffiliationInvitation(ctx *fiber.Ctx) error {
	_, user, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	id, err := pathUUID(ctx, "id")
	if err != nil {
		return a.fail(ctx, err)
	}

	invitation, err := a.Affiliations.Refuse(ctx.Context(), id, user)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(invitation)
}

func (a *APIController) DeleteAffiliationInvitation(ctx *fiber.Ctx) error {
	_, user, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	id, err := pathUUID(ctx, "id")
	if err != nil {
		return a.fail(ctx, err)
	}

	if err := a.Affiliations.Delete(ctx.Context(), id, user); err != nil {
		return a.fail(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

// ----- tasks -----

// TaskUpdatePayload is the staff decision body.
type TaskUpdatePayload struct {
	Status             string `json:"status"`
	RelationshipStatus string `json:"relationshipStatus"`
	Remarks            string `json:"remarks"`
}

// Validate runs validation rules.
func (p TaskUpdatePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Status, validation.Required, validation.In(
			TaskStatusHold,
			TaskStatusCompleted,
			TaskStatusClosed,
		)),
		validation.Field(&p.Remarks, validation.Length(0, 4000)),
	)
}

func (a *APIController) ListTasks(ctx *fiber.Ctx) error {
	claims, _, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	if !claims.IsStaff() {
		return a.fail(ctx, ErrPermissionDenied)
	}

	records, err := a.Tasks.ListOpen(ctx.Context())
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(fiber.Map{"tasks": records})
}

func (a *APIController) GetTask(ctx *fiber.Ctx) error {
	claims, _, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	if !claims.IsStaff() {
		return a.fail(ctx, ErrPermissionDenied)
	}
	id, err := pathUUID(ctx, "id")
	if err != nil {
		return a.fail(ctx, err)
	}

	task, err := a.Tasks.Get(ctx.Context(), id)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(task)
}

func (a *APIController) UpdateTask(ctx *fiber.Ctx) error {
	claims, user, err := a.caller(ctx)
	if err != nil {
		return a.fail(ctx, err)
	}
	if !claims.IsStaff() {
		return a.fail(ctx, ErrPermissionDenied)
	}
	id, err := pathUUID(ctx, "id")
	if err != nil {
		return a.fail(ctx, err)
	}

	payload := new(TaskUpdatePayload)
	if err := ctx.BodyParser(payload); err != nil {
		return a.badBody(ctx, err)
	}
	if err := payload.Validate(); err != nil {
		return a.invalid(ctx, err)
	}

	task, err := a.Tasks.Update(ctx.Context(), id, TaskUpdate{
		Status:             payload.Status,
		RelationshipStatus: payload.RelationshipStatus,
		Remarks:            payload.Remarks,
	}, user)
	if err != nil {
		return a.fail(ctx, err)
	}
	return ctx.JSON(task)
}

// ----- plumbing -----

// caller extracts the token claims the middleware stored and resolves the
// matching user row, creating it on first contact.
func (a *APIController) caller(ctx *fiber.Ctx) (*UserClaims, *User, error) {
	raw := ctx.Locals(ClaimsLocalKey)
	claims, ok := raw.(*UserClaims)
	if raw == nil || !ok {
		return nil, nil, goerrors.New("missing authentication claims", goerrors.CategoryAuth).
			WithCode(goerrors.CodeUnauthorized)
	}

	user, err := a.Repo.Users().GetOrCreateFromClaims(ctx.Context(), claims)
	if err != nil {
		return nil, nil, err
	}
	return claims, user, nil
}

func (a *APIController) badBody(ctx *fiber.Ctx, err error) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "could not parse request body",
		"detail":  err.Error(),
	})
}

func (a *APIController) invalid(ctx *fiber.Ctx, err error) error {
	return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "validation failed",
		"detail":  err.Error(),
	})
}

// fail maps service errors to HTTP responses. Upstream registry outages get
// 503 regardless of the numeric code carried on the error.
func (a *APIController) fail(ctx *fiber.Ctx, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "unexpected server error").
			WithCode(goerrors.CodeInternal)
	}

	status := statusForError(richErr)
	if status >= fiber.StatusInternalServerError {
		a.Logger.Error("request failed: %v", err)
	}

	return ctx.Status(status).JSON(fiber.Map{
		"message": richErr.Message,
		"code":    richErr.TextCode,
	})
}

func statusForError(richErr *goerrors.Error) int {
	if richErr.TextCode == textCodeServiceUnavailable {
		return fiber.StatusServiceUnavailable
	}
	if richErr.Code != 0 {
		return richErr.Code
	}

	switch richErr.Category {
	case goerrors.CategoryAuth:
		return fiber.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return fiber.StatusForbidden
	case goerrors.CategoryNotFound:
		return fiber.StatusNotFound
	case goerrors.CategoryConflict:
		return fiber.StatusConflict
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func pathUUID(ctx *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params(name))
	if err != nil {
		return uuid.Nil, goerrors.New("malformed id in path", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}
	return id, nil
}
