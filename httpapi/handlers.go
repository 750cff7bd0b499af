package httpapi

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/arloliu/go-uhf/epc"
	"github.com/arloliu/go-uhf/reader"
	"github.com/arloliu/go-uhf/uhf"
	"github.com/gin-gonic/gin"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func ok(c *gin.Context, msg string, data any) {
	c.JSON(http.StatusOK, response{Success: true, Message: msg, Data: data})
}

func fail(c *gin.Context, err error, data any) {
	c.JSON(statusFor(err), response{Success: false, Message: err.Error(), Data: data})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, response{Success: false, Message: err.Error()})
}

// statusFor maps reader errors to HTTP status codes.
func statusFor(err error) int {
	var (
		ackErr   *uhf.AckError
		parseErr *epc.ParseError
	)

	switch {
	case errors.Is(err, reader.ErrScanning),
		errors.Is(err, reader.ErrAlreadyScanning),
		errors.Is(err, reader.ErrNotScanning):
		return http.StatusConflict
	case errors.Is(err, reader.ErrNoTag),
		errors.Is(err, &uhf.AckError{Code: uhf.CodeTagNotFound}):
		return http.StatusNotFound
	case errors.Is(err, reader.ErrNoResponse),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, reader.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &parseErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &ackErr), uhf.IsFramingError(err), errors.Is(err, reader.ErrUnexpected):
		return http.StatusBadGateway
	case isInputError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func isInputError(err error) bool {
	var encErr *epc.EncodeError
	return errors.As(err, &encErr) || errors.Is(err, uhf.ErrInvalidArgument)
}

// bindOptional decodes a JSON body into v. An empty body leaves v untouched.
func bindOptional(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}

type recordView struct {
	TagID      string `json:"tag_id"`
	ProductID  string `json:"product_id"`
	Year       int    `json:"year"`
	Month      int    `json:"month"`
	Day        int    `json:"day"`
	Date       string `json:"date"`
	Status     string `json:"status,omitempty"`
	StatusText string `json:"status_text,omitempty"`
}

func newRecordView(rec epc.Record) recordView {
	v := recordView{
		TagID:     rec.TagID,
		ProductID: rec.ProductID,
		Year:      rec.Year,
		Month:     rec.Month,
		Day:       rec.Day,
		Date:      rec.Date(),
		Status:    rec.Status,
	}
	if rec.Status != "" {
		v.StatusText = rec.StatusText()
	}

	return v
}

type discoveryView struct {
	EPC      string      `json:"epc"`
	Raw      string      `json:"raw"`
	RSSI     int8        `json:"rssi"`
	Record   *recordView `json:"record,omitempty"`
	Error    string      `json:"error,omitempty"`
	Written  *recordView `json:"written,omitempty"`
	WriteErr string      `json:"write_error,omitempty"`
	SeenAt   time.Time   `json:"seen_at"`
}

func newDiscoveryView(d *reader.Discovery) discoveryView {
	v := discoveryView{
		EPC:    d.Key,
		Raw:    d.Raw,
		RSSI:   d.RSSI,
		SeenAt: d.SeenAt,
	}
	if d.ParseErr != nil {
		v.Error = d.ParseErr.Error()
	} else {
		rv := newRecordView(d.Record)
		v.Record = &rv
	}
	if d.Written != nil {
		wv := newRecordView(*d.Written)
		v.Written = &wv
	}
	if d.WriteErr != nil {
		v.WriteErr = d.WriteErr.Error()
	}

	return v
}

// writeRequest describes a record to write. Omitted fields default to a
// random tag id, today's date and status "01".
type writeRequest struct {
	ProductID string `json:"product_id"`
	TagID     string `json:"tag_id"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	Day       int    `json:"day"`
	Status    string `json:"status"`
}

func (w writeRequest) record(l epc.Layout, now time.Time) (epc.Record, error) {
	if w.ProductID == "" {
		return epc.Record{}, errors.New("product_id is required")
	}

	rec := epc.NewRecord(l, w.ProductID, now)
	rec.TagID = w.TagID
	if w.Year != 0 {
		rec.Year = w.Year
	}
	if w.Month != 0 {
		rec.Month = w.Month
	}
	if w.Day != 0 {
		rec.Day = w.Day
	}
	if w.Status != "" && l.HasStatus() {
		rec.Status = w.Status
	}

	return rec, nil
}

func (s *Server) handleRead(c *gin.Context) {
	d, err := s.dev.ReadOnce(c.Request.Context())
	if err != nil {
		var data any
		if d != nil {
			data = newDiscoveryView(d)
		}
		fail(c, err, data)

		return
	}

	ok(c, "tag read", newDiscoveryView(d))
}

func (s *Server) handleWrite(c *gin.Context) {
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rec, err := req.record(s.dev.Layout(), time.Now())
	if err != nil {
		badRequest(c, err)
		return
	}
	if rec.TagID == "" {
		rec.TagID = epc.NewTagID(s.dev.Layout())
	}

	res, err := s.dev.WriteOnce(c.Request.Context(), rec)
	if err != nil {
		fail(c, err, nil)
		return
	}

	ok(c, "tag written", gin.H{"epc": res.EPC, "record": newRecordView(res.Record)})
}

type inventoryStartRequest struct {
	// Write, when set, rewrites every new tag with this record.
	Write *writeRequest `json:"write"`
}

func (s *Server) handleInventoryStart(c *gin.Context) {
	var req inventoryStartRequest
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	if req.Write == nil {
		if err := s.dev.Start(); err != nil {
			fail(c, err, nil)
			return
		}
		ok(c, "inventory started", nil)

		return
	}

	tmpl, err := req.Write.record(s.dev.Layout(), time.Now())
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := s.dev.StartWriting(tmpl); err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "inventory started in write mode", nil)
}

func (s *Server) handleInventoryStop(c *gin.Context) {
	if err := s.dev.Stop(c.Request.Context()); err != nil {
		fail(c, err, nil)
		return
	}

	ok(c, "inventory stopped", nil)
}

type inventoryData struct {
	State  string          `json:"state"`
	Unique int             `json:"unique"`
	Tags   []discoveryView `json:"tags"`
	Error  string          `json:"error,omitempty"`
}

func (s *Server) handleInventoryData(c *gin.Context) {
	found := s.dev.Drain()
	stats := s.dev.Stats()

	data := inventoryData{
		State:  stats.State.String(),
		Unique: stats.Unique,
		Tags:   make([]discoveryView, 0, len(found)),
	}
	for _, d := range found {
		data.Tags = append(data.Tags, newDiscoveryView(d))
	}
	if err := s.dev.LastError(); err != nil {
		data.Error = err.Error()
	}

	ok(c, "", data)
}

func (s *Server) handleSelectGet(c *gin.Context) {
	payload, err := s.dev.GetSelectParam(c.Request.Context())
	if err != nil {
		fail(c, err, nil)
		return
	}

	ok(c, "select parameters read", gin.H{"payload": strings.ToUpper(hex.EncodeToString(payload))})
}

type selectRequest struct {
	Target   *uhf.SelectTarget `json:"target"`
	Action   *byte             `json:"action"`
	Bank     *uhf.MemBank      `json:"bank"`
	Pointer  *uint32           `json:"pointer"`
	Truncate bool              `json:"truncate"`
	Mask     string            `json:"mask"`
}

func (r selectRequest) param() (uhf.SelectParam, error) {
	p := uhf.DefaultSelectParam()
	if r.Target != nil {
		p.Target = *r.Target
	}
	if r.Action != nil {
		p.Action = *r.Action
	}
	if r.Bank != nil {
		p.Bank = *r.Bank
	}
	if r.Pointer != nil {
		p.Pointer = *r.Pointer
	}
	p.Truncate = r.Truncate
	if r.Mask != "" {
		mask, err := hex.DecodeString(r.Mask)
		if err != nil {
			return p, errors.New("mask must be hex")
		}
		p.Mask = mask
	}

	return p, nil
}

func (s *Server) handleSelectSet(c *gin.Context) {
	var req selectRequest
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := req.param()
	if err != nil {
		badRequest(c, err)
		return
	}

	if err := s.dev.SetSelectParam(c.Request.Context(), p); err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "select parameters set", nil)
}

type selectModeRequest struct {
	Mode *uhf.SelectMode `json:"mode"`
}

func (s *Server) handleSelectMode(c *gin.Context) {
	var req selectModeRequest
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err)
		return
	}
	mode := uhf.SelectModeNever
	if req.Mode != nil {
		mode = *req.Mode
	}

	if err := s.dev.SetSelectMode(c.Request.Context(), mode); err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "select mode set", nil)
}

type memoryWriteRequest struct {
	Password uint32       `json:"password"`
	Bank     *uhf.MemBank `json:"bank"`
	WordPtr  uint16       `json:"word_ptr"`
	Data     string       `json:"data"`
}

func (s *Server) handleMemoryWrite(c *gin.Context) {
	var req memoryWriteRequest
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	w := uhf.DefaultWriteMemoryRequest()
	w.AccessPassword = req.Password
	w.WordPtr = req.WordPtr
	if req.Bank != nil {
		w.Bank = *req.Bank
	}
	if req.Data != "" {
		data, err := hex.DecodeString(req.Data)
		if err != nil {
			badRequest(c, errors.New("data must be hex"))
			return
		}
		w.Data = data
	}

	if err := s.dev.WriteMemory(c.Request.Context(), w); err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "memory written", nil)
}

type lockRequest struct {
	Password uint32  `json:"password"`
	Mask     *uint16 `json:"mask"`
	Action   *uint16 `json:"action"`
}

func (s *Server) handleMemoryLock(c *gin.Context) {
	var req lockRequest
	if err := bindOptional(c, &req); err != nil {
		badRequest(c, err)
		return
	}

	l := uhf.DefaultLockRequest()
	l.AccessPassword = req.Password
	if req.Mask != nil || req.Action != nil {
		if req.Mask == nil || req.Action == nil {
			badRequest(c, errors.New("mask and action must be given together"))
			return
		}
		l.Payload = uhf.NewLockPayload(*req.Mask, *req.Action)
	}

	if err := s.dev.LockMemory(c.Request.Context(), l); err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, "memory locked", nil)
}
