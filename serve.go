package main

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"

	"github.com/wvkit/gowvcdm/wv"
	wvpb "github.com/wvkit/gowvcdm/wv/proto"
)

type Config struct {
	Serve   Serve           `yaml:"serve"`
	Users   map[string]User `yaml:"users"`
	Devices []DeviceConfig  `yaml:"devices"`
}

type User struct {
	Devices []string `yaml:"devices"`
	Name    string   `yaml:"name"`
}

type Serve struct {
	Port             int64  `yaml:"port"`
	Host             string `yaml:"host"`
	Mode             string `yaml:"mode"`
	ForcePrivacyMode bool   `yaml:"force_privacy_mode"`
}

// DeviceConfig points at the provisioned identity files of one device.
type DeviceConfig struct {
	Name       string `yaml:"name"`
	PrivateKey string `yaml:"private_key"`
	ClientID   string `yaml:"client_id"`
}

type KeyResponseItem struct {
	KeyId string `json:"key_id"`
	Key   string `json:"key"`
}

func readConfig(path string) (*Config, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// server holds one CDM per user+device pair, created on first open.
type server struct {
	config *Config
	log    *slog.Logger

	mu   sync.Mutex
	cdms map[string]*wv.CDM
}

func newServer(config *Config, log *slog.Logger) *server {
	return &server{
		config: config,
		log:    log,
		cdms:   make(map[string]*wv.CDM),
	}
}

func (s *server) deviceConfig(name string) *DeviceConfig {
	for i := range s.config.Devices {
		if s.config.Devices[i].Name == name {
			return &s.config.Devices[i]
		}
	}
	return nil
}

func (s *server) loadDevice(dc *DeviceConfig) (*wv.Device, error) {
	privateKey, err := os.ReadFile(dc.PrivateKey)
	if err != nil {
		return nil, err
	}
	clientID, err := os.ReadFile(dc.ClientID)
	if err != nil {
		return nil, err
	}
	return wv.NewDevice(privateKey, clientID)
}

// cdmFor returns the CDM of a user+device pair, opening the device on first
// use.
func (s *server) cdmFor(secretKey, deviceName string) (*wv.CDM, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cdmKey := secretKey + deviceName
	if cdm, ok := s.cdms[cdmKey]; ok {
		return cdm, nil
	}

	dc := s.deviceConfig(deviceName)
	if dc == nil {
		return nil, wv.ErrInvalidDevice
	}
	device, err := s.loadDevice(dc)
	if err != nil {
		return nil, err
	}
	cdm := wv.NewCDM(device)
	s.cdms[cdmKey] = cdm
	return cdm, nil
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"status":  status,
		"message": message,
	})
	c.Abort()
}

// auth checks the secret key header and that the user may use the device of
// the route.
func (s *server) auth(c *gin.Context) (string, bool) {
	secretKey := c.GetHeader("X-Secret-Key")
	if secretKey == "" {
		fail(c, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	user, ok := s.config.Users[secretKey]
	if !ok || user.Name == "" {
		fail(c, http.StatusUnauthorized, "Unauthorized")
		return "", false
	}
	if deviceName := c.Param("device"); deviceName != "" {
		if !slices.Contains(user.Devices, deviceName) {
			fail(c, http.StatusUnauthorized, "Unauthorized")
			return "", false
		}
	}
	return secretKey, true
}

// openedCDM resolves the CDM the authorized user already opened for the
// device of the route.
func (s *server) openedCDM(c *gin.Context, secretKey string) (*wv.CDM, bool) {
	s.mu.Lock()
	cdm := s.cdms[secretKey+c.Param("device")]
	s.mu.Unlock()
	if cdm == nil {
		fail(c, http.StatusBadRequest, "Opened session not found")
		return nil, false
	}
	return cdm, true
}

type sessionBody struct {
	SessionID   string `json:"session_id"`
	Certificate string `json:"certificate"`
	InitData    string `json:"init_data"`
	License     string `json:"license"`
}

func readBody(c *gin.Context) (*sessionBody, bool) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to read request body")
		return nil, false
	}
	var body sessionBody
	if err := json.Unmarshal(raw, &body); err != nil {
		fail(c, http.StatusBadRequest, "Failed to parse request body")
		return nil, false
	}
	if body.SessionID == "" {
		fail(c, http.StatusBadRequest, "Session id not found")
		return nil, false
	}
	return &body, true
}

func (b *sessionBody) sessionId(c *gin.Context) ([]byte, bool) {
	sessionId, err := hex.DecodeString(b.SessionID)
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to decode session id")
		return nil, false
	}
	return sessionId, true
}

func (s *server) router(mode string) *gin.Engine {
	var router *gin.Engine
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
		gin.DefaultWriter = io.Discard
		router = gin.New()
		router.Use(gin.Recovery())
	} else {
		router = gin.Default()
	}

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, HEAD, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept")
		c.Header("Content-Type", "application/json")
		c.Header("X-Request-Via", "gowvcdm")
		c.Next()
	})

	running := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  http.StatusOK,
			"message": "gowvcdm serve is running!",
		})
	}
	router.GET("/", running)
	router.HEAD("/", running)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  http.StatusOK,
			"message": "pong",
		})
	})

	router.GET("/:device/open", s.handleOpen)
	router.GET("/:device/close/:session_id", s.handleClose)
	router.POST("/:device/set_service_certificate", s.handleSetServiceCertificate)
	router.POST("/:device/get_license_challenge/:license_type", s.handleGetLicenseChallenge)
	router.POST("/:device/parse_license", s.handleParseLicense)
	router.POST("/:device/get_keys/:key_type", s.handleGetKeys)

	return router
}

func (s *server) handleOpen(c *gin.Context) {
	secretKey, ok := s.auth(c)
	if !ok {
		return
	}

	cdm, err := s.cdmFor(secretKey, c.Param("device"))
	if err != nil {
		s.log.Error("open device", "device", c.Param("device"), "err", err)
		fail(c, http.StatusBadRequest, "Failed to open device")
		return
	}

	session, err := cdm.OpenSession()
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to open session : "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Success",
		"data": gin.H{
			"session_id": session.HexId(),
		},
	})
}

func (s *server) handleClose(c *gin.Context) {
	secretKey, ok := s.auth(c)
	if !ok {
		return
	}
	cdm, ok := s.openedCDM(c, secretKey)
	if !ok {
		return
	}

	sessionId, err := hex.DecodeString(c.Param("session_id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to decode session id")
		return
	}
	if err := cdm.CloseSession(sessionId); err != nil {
		fail(c, http.StatusBadRequest, "Failed to close session")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Session closed",
	})
}

func (s *server) handleSetServiceCertificate(c *gin.Context) {
	secretKey, ok := s.auth(c)
	if !ok {
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}
	if body.Certificate == "" {
		fail(c, http.StatusBadRequest, "Certificate not found")
		return
	}
	cdm, ok := s.openedCDM(c, secretKey)
	if !ok {
		return
	}
	sessionId, ok := body.sessionId(c)
	if !ok {
		return
	}

	certificate, err := base64.StdEncoding.DecodeString(body.Certificate)
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to decode certificate")
		return
	}
	if _, err := cdm.SetServiceCertificate(sessionId, certificate); err != nil {
		fail(c, http.StatusBadRequest, "Failed to set service certificate : "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Service certificate set",
	})
}

func (s *server) handleGetLicenseChallenge(c *gin.Context) {
	secretKey, ok := s.auth(c)
	if !ok {
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}
	if body.InitData == "" {
		fail(c, http.StatusBadRequest, "init_data not found")
		return
	}
	cdm, ok := s.openedCDM(c, secretKey)
	if !ok {
		return
	}
	sessionId, ok := body.sessionId(c)
	if !ok {
		return
	}

	psshDecoded, err := base64.StdEncoding.DecodeString(body.InitData)
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to decode pssh")
		return
	}
	pssh, err := wv.NewPSSH(psshDecoded)
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to create pssh : "+err.Error())
		return
	}

	licenseType, ok := wvpb.LicenseTypeValue[strings.ToUpper(c.Param("license_type"))]
	if !ok {
		fail(c, http.StatusBadRequest, "Failed to map license type")
		return
	}

	challenge, err := cdm.GetLicenseChallenge(sessionId, pssh, licenseType, s.config.Serve.ForcePrivacyMode)
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to get license challenge : "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Success",
		"data": gin.H{
			"challenge_b64": base64.StdEncoding.EncodeToString(challenge),
		},
	})
}

func (s *server) handleParseLicense(c *gin.Context) {
	secretKey, ok := s.auth(c)
	if !ok {
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}
	if body.License == "" {
		fail(c, http.StatusBadRequest, "License not found")
		return
	}
	cdm, ok := s.openedCDM(c, secretKey)
	if !ok {
		return
	}
	sessionId, ok := body.sessionId(c)
	if !ok {
		return
	}

	licenseDecoded, err := base64.StdEncoding.DecodeString(body.License)
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to decode license")
		return
	}
	if err := cdm.ParseLicense(sessionId, licenseDecoded); err != nil {
		fail(c, http.StatusBadRequest, "Failed to parse license : "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Success",
	})
}

func (s *server) handleGetKeys(c *gin.Context) {
	secretKey, ok := s.auth(c)
	if !ok {
		return
	}
	body, ok := readBody(c)
	if !ok {
		return
	}
	cdm, ok := s.openedCDM(c, secretKey)
	if !ok {
		return
	}
	sessionId, ok := body.sessionId(c)
	if !ok {
		return
	}

	var keyType wvpb.KeyType
	if typeParam := strings.ToUpper(c.Param("key_type")); typeParam != "ALL" {
		keyType, ok = wvpb.KeyTypeValue[typeParam]
		if !ok {
			fail(c, http.StatusBadRequest, "Failed to map key type")
			return
		}
	}

	keys, err := cdm.GetKeys(sessionId, keyType)
	if err != nil {
		fail(c, http.StatusBadRequest, "Failed to get keys : "+err.Error())
		return
	}

	mappedKeyResponses := make([]*KeyResponseItem, 0, len(keys))
	for _, key := range keys {
		mappedKeyResponses = append(mappedKeyResponses, &KeyResponseItem{
			KeyId: key.KeyIdHex(),
			Key:   key.KeyHex(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"message": "Success",
		"data": gin.H{
			"keys": mappedKeyResponses,
		},
	})
}

func serveMain(configPath string) error {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	config, err := readConfig(configPath)
	if err != nil {
		return err
	}

	mode := config.Serve.Mode
	switch mode {
	case "", "prod", "production", "release":
		mode = "release"
	default:
		mode = "debug"
	}

	s := newServer(config, log)
	router := s.router(mode)

	address := config.Serve.Host + ":" + strconv.FormatInt(config.Serve.Port, 10)
	log.Info("serve starting", "address", address, "mode", mode)
	return router.Run(address)
}
