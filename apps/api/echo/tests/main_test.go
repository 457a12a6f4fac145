package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"regexp"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	. "github.com/TTR-x/ttr-gestion-sub002/apps/api/echo"
	"github.com/TTR-x/ttr-gestion-sub002/core"
	"github.com/TTR-x/ttr-gestion-sub002/core/device"
	"github.com/TTR-x/ttr-gestion-sub002/core/ledger"
	"github.com/TTR-x/ttr-gestion-sub002/core/member"
	"github.com/TTR-x/ttr-gestion-sub002/core/treasury"
	emailsvc "github.com/TTR-x/ttr-gestion-sub002/services/email"
	locksvc "github.com/TTR-x/ttr-gestion-sub002/services/lock"
	logsvc "github.com/TTR-x/ttr-gestion-sub002/services/logger"
	metricsvc "github.com/TTR-x/ttr-gestion-sub002/services/metrics"
	inmemdb "github.com/TTR-x/ttr-gestion-sub002/storage/database/inmem"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	tokenRegex      = regexp.MustCompile(`token=([0-9a-f-]{36})`)
)

type testEnv struct {
	app      Server
	conf     *core.Config
	repos    *inmemdb.Repositories
	mailSvc  *emailsvc.ConsoleServiceMock
	metrics  *metricsvc.Metrics
	treasury treasury.Service
}

func setup(t *testing.T, configure ...func(*core.Config)) *testEnv {
	t.Helper()
	conf := core.NewTestConfig()
	for _, fn := range configure {
		fn(conf)
	}
	logger := logsvc.NewDiscardLogger(conf)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	member.InitValidators(validate, translator)
	ledger.InitValidators(validate, translator)

	// set up DB & repos
	repos := inmemdb.NewRepositories(inmemdb.Open())

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	memberSvc := member.NewService(repos.Members, logger)
	deviceSvc := device.NewService(repos.Devices, mailSvc, conf, logger)
	treasurySvc := treasury.NewService(repos.Treasury)
	ledgerSvc := ledger.NewService(repos.Ledger, repos.Archive, treasurySvc, memberSvc, locksvc.NewLocalLocker(), logger)

	reg := prometheus.NewRegistry()
	metrics, err := metricsvc.NewPrometheusMetrics(reg)
	if err != nil {
		t.Fatalf("NewPrometheusMetrics() failed: %v", err)
	}

	// set up server
	app := NewServer(
		"",  /* addr */
		nil, /* shutdown */
		&Deps{
			Conf:       conf,
			Logger:     logger,
			MemberSvc:  memberSvc,
			DeviceSvc:  deviceSvc,
			LedgerSvc:  ledgerSvc,
			Validate:   validate,
			Translator: translator,
			Metrics:    metrics,
			Gatherer:   reg,
		},
	)
	return &testEnv{
		app:      app,
		conf:     conf,
		repos:    repos,
		mailSvc:  mailSvc,
		metrics:  metrics,
		treasury: treasurySvc,
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (env *testEnv) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	env.app.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, env *testEnv, m member.Member) string {
	token, err := GenerateToken(GetMemberClaims(m, env.conf), env.conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshallObj(t *testing.T, data []byte) map[string]interface{} {
	var obj map[string]interface{}
	if err := json.Unmarshal(data, &obj); err != nil {
		t.Fatalf("unmarshallObj() failed: %v; data %s", err, data)
	}
	return obj
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, env *testEnv, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			checkCodeAndData(t, tt, env.do(method, tt.path, tt.token, tt.body))
		})
	}
}

// lastOverrideToken extracts the token from the last override email sent.
func lastOverrideToken(t *testing.T, mailSvc *emailsvc.ConsoleServiceMock) string {
	t.Helper()
	msgs := mailSvc.SentMessages()
	if len(msgs) == 0 {
		t.Fatal("no email sent")
	}
	match := tokenRegex.FindStringSubmatch(msgs[len(msgs)-1].TextContent)
	if match == nil {
		t.Fatalf("no token in email: %s", msgs[len(msgs)-1].TextContent)
	}
	return match[1]
}
