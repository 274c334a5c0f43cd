package service

import (
	"Recharge/config"
	"Recharge/dao"
	"Recharge/models"
	"Recharge/pkg/database"
	"Recharge/pkg/wxpay"
	"Recharge/types"
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testAPIKey = "test-api-key"

type fakeGateway struct {
	mu         sync.Mutex
	parser     *wxpay.Client
	created    []*wxpay.UnifiedOrderRequest
	createErr  error
	states     map[string]*wxpay.OrderQueryResult
	queryErr   error
	queryCalls int
	closeErr   error
	closed     []string
}

func (g *fakeGateway) CreateNativeOrder(_ context.Context, req *wxpay.UnifiedOrderRequest) (*wxpay.UnifiedOrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, req)
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &wxpay.UnifiedOrderResult{
		PrepayID:   "prepay-" + req.OutTradeNo,
		CodeURL:    "weixin://wxpay/bizpayurl?pr=" + req.OutTradeNo,
		OutTradeNo: req.OutTradeNo,
	}, nil
}

func (g *fakeGateway) QueryOrder(_ context.Context, outTradeNo string) (*wxpay.OrderQueryResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queryCalls++
	if g.queryErr != nil {
		return nil, g.queryErr
	}
	if st, ok := g.states[outTradeNo]; ok {
		cp := *st
		return &cp, nil
	}
	return &wxpay.OrderQueryResult{TradeState: wxpay.TradeStateNotPay, OutTradeNo: outTradeNo}, nil
}

func (g *fakeGateway) CloseOrder(_ context.Context, outTradeNo string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = append(g.closed, outTradeNo)
	return g.closeErr
}

func (g *fakeGateway) ParseNotify(raw []byte) (*wxpay.Notification, error) {
	return g.parser.ParseNotify(raw)
}

func (g *fakeGateway) setState(outTradeNo, state string, fee int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.states[outTradeNo] = &wxpay.OrderQueryResult{
		TradeState:    state,
		OutTradeNo:    outTradeNo,
		TransactionID: "42000" + outTradeNo,
		TotalFee:      fee,
		CashFee:       fee,
	}
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.queryCalls
}

// countingLedger 统计入账调用次数，可注入失败
type countingLedger struct {
	*PointService
	n    atomic.Int32
	fail error
}

func (c *countingLedger) Credit(ctx context.Context, tx *gorm.DB, req *CreditRequest) (*CreditResult, error) {
	c.n.Add(1)
	if c.fail != nil {
		return nil, c.fail
	}
	return c.PointService.Credit(ctx, tx, req)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []*types.OrderPaidEvent
}

func (f *fakeEvents) PublishOrderPaid(_ context.Context, event *types.OrderPaidEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type testEnv struct {
	t       *testing.T
	db      *gorm.DB
	clock   time.Time
	gw      *fakeGateway
	ledger  *countingLedger
	events  *fakeEvents
	payment *PaymentService
	notify  *NotifyService
	pkgID   uint64
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// 内存库每个连接独立，固定单连接
	sqlDB.SetMaxOpenConns(1)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)

	parser, err := wxpay.NewClient(&config.WechatPayConfig{
		AppID:     "wx0000000000000001",
		MchID:     "1900000109",
		APIKey:    testAPIKey,
		NotifyURL: "https://example.com/notify",
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	orderConf := &config.OrderConfig{}
	if err := orderConf.Validate(); err != nil {
		t.Fatalf("order config: %v", err)
	}

	env := &testEnv{
		t:     t,
		db:    db,
		clock: time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC),
		gw:    &fakeGateway{parser: parser, states: make(map[string]*wxpay.OrderQueryResult)},
		ledger: &countingLedger{PointService: &PointService{
			DB:       db,
			PointDAO: dao.NewPoint(db),
		}},
		events: &fakeEvents{},
	}
	orders := dao.NewPaymentOrder(db)
	env.payment = &PaymentService{
		DB:       db,
		Config:   orderConf,
		OrderDAO: orders,
		Packages: &PackageService{PackageDAO: dao.NewPaymentPackage(db)},
		Points:   env.ledger,
		Gateway:  env.gw,
		Events:   env.events,
		Now:      func() time.Time { return env.clock },
	}
	env.notify = &NotifyService{
		Gateway:   env.gw,
		Payment:   env.payment,
		OrderDAO:  orders,
		NotifyLog: dao.NewNotifyLog(db),
		Now:       func() time.Time { return env.clock },
	}
	env.pkgID = env.seedPackage("9.90", true)
	return env
}

func (e *testEnv) seedPackage(price string, active bool) uint64 {
	e.t.Helper()
	pkg := &models.PaymentPackage{
		Name:        "积分包",
		Price:       decimal.RequireFromString(price),
		Points:      100,
		BonusPoints: 10,
		IsActive:    true,
	}
	if err := e.db.Create(pkg).Error; err != nil {
		e.t.Fatalf("seed package: %v", err)
	}
	if !active {
		// is_active 默认值为 true，零值不会随 Create 写入
		if err := e.db.Model(pkg).Update("is_active", false).Error; err != nil {
			e.t.Fatalf("deactivate package: %v", err)
		}
	}
	return pkg.ID
}

func (e *testEnv) createOrder(userID uint64) *models.PaymentOrder {
	e.t.Helper()
	res, err := e.payment.CreateOrder(context.Background(), userID, e.pkgID, "10.0.0.1")
	if err != nil {
		e.t.Fatalf("create order: %v", err)
	}
	return res.Order
}

func (e *testEnv) reload(orderNo string) *models.PaymentOrder {
	e.t.Helper()
	var o models.PaymentOrder
	if err := e.db.Where("order_no = ?", orderNo).First(&o).Error; err != nil {
		e.t.Fatalf("reload %s: %v", orderNo, err)
	}
	return &o
}

func (e *testEnv) setStatus(orderNo, status string) {
	e.t.Helper()
	if err := e.db.Model(&models.PaymentOrder{}).Where("order_no = ?", orderNo).Update("status", status).Error; err != nil {
		e.t.Fatalf("set status: %v", err)
	}
}

func (e *testEnv) balance(userID uint64) int64 {
	e.t.Helper()
	var acc models.UserPoint
	if err := e.db.Where("user_id = ?", userID).First(&acc).Error; err != nil {
		return 0
	}
	return acc.Balance
}

func (e *testEnv) logCount(orderNo string) int64 {
	e.t.Helper()
	var n int64
	e.db.Model(&models.PointsLog{}).Where("source_id = ?", orderNo).Count(&n)
	return n
}

func (e *testEnv) notifyBody(order *models.PaymentOrder, fee int64, key string) []byte {
	params := map[string]string{
		"return_code":    "SUCCESS",
		"result_code":    "SUCCESS",
		"appid":          "wx0000000000000001",
		"mch_id":         "1900000109",
		"out_trade_no":   order.OutTradeNo,
		"transaction_id": "42000" + order.OutTradeNo,
		"total_fee":      strconv.FormatInt(fee, 10),
		"time_end":       "20240501100500",
		"attach":         string(order.Metadata),
	}
	params["sign"] = wxpay.Sign(params, key)
	return wxpay.EncodeXML(params)
}
