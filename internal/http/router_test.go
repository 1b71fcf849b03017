package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	audithandler "safemint/internal/audit/handler"
	auditservice "safemint/internal/audit/service"
	auditstore "safemint/internal/audit/store"
	"safemint/internal/core"
	"safemint/internal/jwttoken"
	authhandler "safemint/internal/jwttoken/handler"
	registryhandler "safemint/internal/registry/handler"
	registryservice "safemint/internal/registry/service"
	registrystore "safemint/internal/registry/store"
	"safemint/internal/roles"
	roleshandler "safemint/internal/roles/handler"
	"safemint/internal/token"
	tokenhandler "safemint/internal/token/handler"
	id "safemint/pkg/domain"
	"safemint/pkg/testutil"
)

// RouterSuite exercises the assembled HTTP surface: JWT authentication, the
// admin gate, and the dispute lifecycle driven purely through the API.
type RouterSuite struct {
	suite.Suite
	router http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	seq := core.NewSequencer()
	ledger := token.NewInMemoryLedger()
	roleStore := roles.NewInMemoryStore()
	jwtService := jwttoken.NewJWTService("router-test-key", "safemint", "safemint-api")

	registry, err := registryservice.New(
		registrystore.NewInMemory(), ledger, "custody:registry", id.Units(100), seq,
		registryservice.WithLogger(logger),
	)
	s.Require().NoError(err)

	audits, err := auditservice.New(
		registry, auditstore.NewInMemory(), ledger, roleStore, "custody:audit",
		id.Units(10), id.Units(10), seq,
		auditservice.WithLogger(logger),
	)
	s.Require().NoError(err)

	s.router = NewRouter(Deps{
		Logger:    logger,
		Validator: jwttoken.NewMiddlewareAdapter(jwtService),
		Auth:      authhandler.New(jwtService, logger),
		Tokens:    tokenhandler.New(ledger, ledger, logger),
		Roles:     roleshandler.New(roleStore, logger),
		Registry:  registryhandler.New(registry, logger),
		Audits:    audithandler.New(audits, logger),
	})
}

// issueToken obtains a bearer token through the public auth endpoint.
func (s *RouterSuite) issueToken(account string, admin bool) string {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/auth/token", map[string]any{
		"account": account,
		"admin":   admin,
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)

	resp := testutil.UnmarshalResponse[struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}](s.T(), rr)
	s.Equal("Bearer", resp.TokenType)
	return resp.AccessToken
}

func (s *RouterSuite) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(s.T(), method, path, body)
	} else {
		req = testutil.NewRequest(s.T(), method, path)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *RouterSuite) TestOpenEndpoints() {
	s.Run("healthz needs no token", func() {
		rr := s.do(http.MethodGet, "/healthz", "", nil)
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("metrics needs no token", func() {
		rr := s.do(http.MethodGet, "/metrics", "", nil)
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("token issuance needs no token", func() {
		s.NotEmpty(s.issueToken("0xanyone", false))
	})
}

func (s *RouterSuite) TestAuthGate() {
	s.Run("missing token is unauthorized", func() {
		rr := s.do(http.MethodGet, "/registry/price", "", nil)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("garbage token is unauthorized", func() {
		rr := s.do(http.MethodGet, "/registry/price", "not-a-jwt", nil)
		testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	})

	s.Run("valid token passes", func() {
		bearer := s.issueToken("0xanyone", false)
		rr := s.do(http.MethodGet, "/registry/price", bearer, nil)
		testutil.AssertStatusOK(s.T(), rr)
	})
}

func (s *RouterSuite) TestAdminGate() {
	s.Run("non-admin token is forbidden", func() {
		bearer := s.issueToken("0xanyone", false)
		rr := s.do(http.MethodPost, "/admin/token/mint", bearer, map[string]string{
			"account": "0xanyone",
			"amount":  id.Units(1).String(),
		})
		testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
	})

	s.Run("admin token passes", func() {
		bearer := s.issueToken("0xroot", true)
		rr := s.do(http.MethodPost, "/admin/token/mint", bearer, map[string]string{
			"account": "0xanyone",
			"amount":  id.Units(1).String(),
		})
		testutil.AssertStatusOK(s.T(), rr)
	})
}

// TestDisputeLifecycleOverAPI runs the whole flow with nothing but HTTP
// requests: bootstrap supply and roles as admin, then register, reject,
// challenge, overturn, and claim.
func (s *RouterSuite) TestDisputeLifecycleOverAPI() {
	t := s.T()

	admin := s.issueToken("0xroot", true)
	owner := s.issueToken("0xowner", false)
	auditor := s.issueToken("0xauditor", false)
	challenger := s.issueToken("0xchallenger", false)
	arbitrator := s.issueToken("0xarbitrator", false)

	testutil.Given(t, "funded accounts with granted roles", func(t *testing.T) {
		for account, amount := range map[string]int64{
			"0xowner":      100,
			"0xauditor":    10,
			"0xchallenger": 10,
		} {
			rr := s.do(http.MethodPost, "/admin/token/mint", admin, map[string]string{
				"account": account,
				"amount":  id.Units(amount).String(),
			})
			testutil.AssertStatusOK(t, rr)
		}

		for account, role := range map[string]string{
			"0xauditor":    string(roles.AuditorRole),
			"0xarbitrator": string(roles.ArbitratorRole),
		} {
			rr := s.do(http.MethodPost, "/admin/roles/grant", admin, map[string]string{
				"role":    role,
				"account": account,
			})
			testutil.AssertStatusOK(t, rr)
		}

		rr := s.do(http.MethodGet, "/roles/"+string(roles.AuditorRole)+"/0xauditor", owner, nil)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "granted", true)
	})

	testutil.Given(t, "custody allowances approved by each payer", func(t *testing.T) {
		approvals := []struct {
			bearer  string
			spender string
			amount  int64
		}{
			{owner, "custody:registry", 100},
			{auditor, "custody:audit", 10},
			{challenger, "custody:audit", 10},
		}
		for _, a := range approvals {
			rr := s.do(http.MethodPost, "/token/approve", a.bearer, map[string]string{
				"spender": a.spender,
				"amount":  id.Units(a.amount).String(),
			})
			testutil.AssertStatusOK(t, rr)
		}
	})

	testutil.When(t, "the owner registers a project", func(t *testing.T) {
		rr := s.do(http.MethodPost, "/projects", owner, map[string]any{
			"name":             "vault",
			"project_contract": "0xcontract-vault",
			"ipfs_address":     "ipfs://vault",
		})
		testutil.AssertStatus(t, rr, http.StatusCreated)
	})

	testutil.When(t, "the dispute runs reject, challenge, overturn", func(t *testing.T) {
		rr := s.do(http.MethodPost, "/projects/vault/audit", auditor, map[string]string{
			"decision": "rejected",
			"comments": "insufficient docs",
		})
		testutil.AssertStatusOK(t, rr)

		rr = s.do(http.MethodPost, "/projects/vault/challenge", challenger, map[string]string{
			"comments": "docs were attached",
		})
		testutil.AssertStatusOK(t, rr)

		rr = s.do(http.MethodPost, "/projects/vault/arbitrate", arbitrator, map[string]string{
			"decision": "passed",
		})
		testutil.AssertStatusOK(t, rr)
	})

	testutil.Then(t, "the auditor claims the pooled reward once", func(t *testing.T) {
		rr := s.do(http.MethodPost, "/projects/vault/claim", auditor, nil)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "amount", id.Units(120).String())

		rr = s.do(http.MethodGet, "/token/balance/0xauditor", auditor, nil)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "amount", id.Units(120).String())

		rr = s.do(http.MethodPost, "/projects/vault/claim", auditor, nil)
		require.Equal(t, http.StatusConflict, rr.Code)
	})

	testutil.Then(t, "the project rests in the passed partition", func(t *testing.T) {
		rr := s.do(http.MethodGet, "/projects/vault", owner, nil)
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", "passed")
	})
}
