// Package vnpay implements the parts of the VNPay 2.1.0 contract the backend
// needs: signing payment requests, verifying callback signatures and the
// order-info convention used to correlate a payment with a user.
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"alcyxob/fitness-coach/internal/config"
)

// Parameter names used by the gateway.
const (
	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"
	ParamResponseCode   = "vnp_ResponseCode"
	ParamOrderInfo      = "vnp_OrderInfo"
	ParamTxnRef         = "vnp_TxnRef"
	ParamAmount         = "vnp_Amount"
)

// Response codes exchanged with the gateway.
const (
	CodeSuccess          = "00"
	CodeOrderNotFound    = "01"
	CodeOrderConfirmed   = "02"
	CodeInvalidAmount    = "04"
	CodeInvalidSignature = "97"
	CodeUnknownError     = "99"
)

const (
	version   = "2.1.0"
	timeStamp = "20060102150405"
)

// gatewayZone is the gateway's reference time zone (GMT+7).
var gatewayZone = time.FixedZone("GMT+7", 7*60*60)

var (
	ErrMissingSignature = errors.New("callback has no secure hash")
	ErrBadOrderInfo     = errors.New("order info is not in '<plan> <n> Months_<userId>' form")
)

// Params is a flat key/value view of gateway parameters.
type Params map[string]string

// ParamsFromQuery flattens query values, keeping the first value of each key.
func ParamsFromQuery(q url.Values) Params {
	p := make(Params, len(q))
	for k, v := range q {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	return p
}

// Canonicalize builds the string that is signed: every parameter except the
// hash fields, key and value URL-encoded, sorted by encoded key and joined
// as k=v pairs with '&'.
func Canonicalize(p Params) string {
	type pair struct{ k, v string }
	pairs := make([]pair, 0, len(p))
	for k, v := range p {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		pairs = append(pairs, pair{url.QueryEscape(k), url.QueryEscape(v)})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].k < pairs[j].k })

	var b strings.Builder
	for i, kv := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(kv.k)
		b.WriteByte('=')
		b.WriteString(kv.v)
	}
	return b.String()
}

// Sign returns the lowercase hex HMAC-SHA512 of data under secret.
func Sign(data, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the vnp_SecureHash of p against the canonical form of the
// remaining parameters. The comparison runs in constant time.
func Verify(p Params, secret string) (bool, error) {
	provided, ok := p[ParamSecureHash]
	if !ok || provided == "" {
		return false, ErrMissingSignature
	}
	expected := Sign(Canonicalize(p), secret)
	return hmac.Equal([]byte(strings.ToLower(provided)), []byte(expected)), nil
}

var (
	monthsPattern = regexp.MustCompile(`(?i)(\d+)\s*months?`)
	digitsPattern = regexp.MustCompile(`\d+`)
)

// FormatOrderInfo renders the order-info string for a premium purchase.
func FormatOrderInfo(months int, userID string) string {
	return fmt.Sprintf("Premium Plan %d Months_%s", months, userID)
}

// ParseOrderInfo extracts the duration in months and the user id from an
// order-info string. The user id is everything after the first '_'.
func ParseOrderInfo(s string) (months int, userID string, err error) {
	planInfo, userID, found := strings.Cut(s, "_")
	if !found || userID == "" {
		return 0, "", ErrBadOrderInfo
	}
	match := monthsPattern.FindStringSubmatch(planInfo)
	digits := ""
	if match != nil {
		digits = match[1]
	} else {
		digits = digitsPattern.FindString(planInfo)
	}
	if digits == "" {
		return 0, "", ErrBadOrderInfo
	}
	months, err = strconv.Atoi(digits)
	if err != nil || months <= 0 {
		return 0, "", ErrBadOrderInfo
	}
	return months, userID, nil
}

// PaymentRequest describes a single premium purchase.
type PaymentRequest struct {
	TxnRef    string
	OrderInfo string
	Amount    int64 // VND
	ClientIP  string
	CreatedAt time.Time
}

// Client builds signed payment URLs for one merchant terminal.
type Client struct {
	tmnCode    string
	hashSecret string
	payURL     string
	returnURL  string
	locale     string
	orderTTL   time.Duration
}

func NewClient(cfg config.VNPayConfig) *Client {
	locale := cfg.Locale
	if locale == "" {
		locale = "vn"
	}
	ttl := cfg.OrderTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Client{
		tmnCode:    cfg.TmnCode,
		hashSecret: cfg.HashSecret,
		payURL:     cfg.PayURL,
		returnURL:  cfg.ReturnURL,
		locale:     locale,
		orderTTL:   ttl,
	}
}

// Params returns the signed parameter set for req, including vnp_SecureHash.
func (c *Client) Params(req PaymentRequest) Params {
	created := req.CreatedAt.In(gatewayZone)
	ip := req.ClientIP
	if ip == "" {
		ip = "127.0.0.1"
	}
	p := Params{
		"vnp_Version":    version,
		"vnp_Command":    "pay",
		"vnp_TmnCode":    c.tmnCode,
		"vnp_Locale":     c.locale,
		"vnp_CurrCode":   "VND",
		ParamTxnRef:      req.TxnRef,
		ParamOrderInfo:   req.OrderInfo,
		"vnp_OrderType":  "other",
		ParamAmount:      strconv.FormatInt(req.Amount*100, 10),
		"vnp_ReturnUrl":  c.returnURL,
		"vnp_IpAddr":     ip,
		"vnp_CreateDate": created.Format(timeStamp),
		"vnp_ExpireDate": created.Add(c.orderTTL).Format(timeStamp),
	}
	p[ParamSecureHash] = Sign(Canonicalize(p), c.hashSecret)
	return p
}

// PaymentURL returns the gateway redirect URL for req.
func (c *Client) PaymentURL(req PaymentRequest) string {
	p := c.Params(req)
	hash := p[ParamSecureHash]
	return c.payURL + "?" + Canonicalize(p) + "&" + ParamSecureHash + "=" + hash
}

// Verify checks a callback parameter set with the client's secret.
func (c *Client) Verify(p Params) (bool, error) {
	return Verify(p, c.hashSecret)
}
