/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go-ext/component/storage/mongodb"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/trustbloc/edge-core/pkg/log"

	"github.com/trustbloc/prenet/pkg/crypto"
	"github.com/trustbloc/prenet/pkg/datastore"
	"github.com/trustbloc/prenet/pkg/node"
	"github.com/trustbloc/prenet/pkg/policy/registry"
	"github.com/trustbloc/prenet/pkg/restapi"
	"github.com/trustbloc/prenet/pkg/restapi/operation"
	cmdutils "github.com/trustbloc/prenet/pkg/utils/cmd"
)

const (
	hostURLFlagName      = "host-url"
	hostURLEnvKey        = "URSULA_HOST_URL"
	hostURLFlagShorthand = "u"
	hostURLFlagUsage     = "URL to run the node instance on. Format: HostName:Port." +
		" Alternatively, this can be set with the following environment variable: " + hostURLEnvKey

	externalURLFlagName      = "external-url"
	externalURLEnvKey        = "URSULA_EXTERNAL_URL"
	externalURLFlagShorthand = "x"
	externalURLFlagUsage     = "URL the node advertises to characters. Defaults to the host URL." +
		" Alternatively, this can be set with the following environment variable: " + externalURLEnvKey

	tlsCertFileFlagName  = "tls-cert-file"
	tlsCertFileEnvKey    = "URSULA_TLS_CERT_FILE"
	tlsCertFileFlagUsage = "TLS certificate file." +
		" Alternatively, this can be set with the following environment variable: " + tlsCertFileEnvKey

	tlsKeyFileFlagName  = "tls-key-file"
	tlsKeyFileEnvKey    = "URSULA_TLS_KEY_FILE"
	tlsKeyFileFlagUsage = "TLS key file." +
		" Alternatively, this can be set with the following environment variable: " + tlsKeyFileEnvKey

	databaseTypeFlagName      = "database-type"
	databaseTypeEnvKey        = "URSULA_DATABASE_TYPE"
	databaseTypeFlagShorthand = "t"
	databaseTypeFlagUsage     = "The type of database to keep audit records, arrangements and the policy registry in." +
		" Supported options: mem, mongodb." +
		" Alternatively, this can be set with the following environment variable: " + databaseTypeEnvKey

	databaseTypeMemOption     = "mem"
	databaseTypeMongoDBOption = "mongodb"

	databaseURLFlagName      = "database-url"
	databaseURLEnvKey        = "URSULA_DATABASE_URL"
	databaseURLFlagShorthand = "l"
	databaseURLFlagUsage     = "The URL of the database. Not needed if using memstore." +
		" Alternatively, this can be set with the following environment variable: " + databaseURLEnvKey

	databasePrefixFlagName      = "database-prefix"
	databasePrefixEnvKey        = "URSULA_DATABASE_PREFIX"
	databasePrefixFlagShorthand = "p"
	databasePrefixFlagUsage     = "An optional prefix to be used when creating and retrieving underlying databases." +
		" Alternatively, this can be set with the following environment variable: " + databasePrefixEnvKey

	databaseTimeoutFlagName  = "database-timeout"
	databaseTimeoutEnvKey    = "URSULA_DATABASE_TIMEOUT"
	databaseTimeoutFlagUsage = "Timeout for database operations, for example 10s. Defaults to 30s." +
		" Alternatively, this can be set with the following environment variable: " + databaseTimeoutEnvKey

	logLevelFlagName      = "log-level"
	logLevelEnvKey        = "URSULA_LOG_LEVEL"
	logLevelFlagShorthand = "g"
	logLevelFlagUsage     = "Logging level to set. Supported options: critical, error, warning, info, debug." +
		" Defaults to info." +
		" Alternatively, this can be set with the following environment variable: " + logLevelEnvKey

	logLevelCritical = "critical"
	logLevelError    = "error"
	logLevelWarn     = "warning"
	logLevelInfo     = "info"
	logLevelDebug    = "debug"

	federatedOnlyFlagName  = "federated-only"
	federatedOnlyEnvKey    = "URSULA_FEDERATED_ONLY"
	federatedOnlyFlagUsage = "Skip payment, activity and stake checks." +
		" Alternatively, this can be set with the following environment variable: " + federatedOnlyEnvKey

	keySeedFlagName  = "key-seed"
	keySeedEnvKey    = "URSULA_KEY_SEED"
	keySeedFlagUsage = "Seed the node's signing and decrypting keys are derived from. Without it the node gets" +
		" fresh keys, and a new address, on every start." +
		" Alternatively, this can be set with the following environment variable: " + keySeedEnvKey

	oracleTimeoutFlagName  = "oracle-timeout"
	oracleTimeoutEnvKey    = "URSULA_ORACLE_TIMEOUT"
	oracleTimeoutFlagUsage = "Timeout for payment, activity and stake checks, for example 5s. Defaults to 5s." +
		" Alternatively, this can be set with the following environment variable: " + oracleTimeoutEnvKey

	stakeDurationFlagName  = "stake-duration"
	stakeDurationEnvKey    = "URSULA_STAKE_DURATION"
	stakeDurationFlagUsage = "Records a stake for this node in the policy registry lasting this long from start," +
		" for example 720h. Ignored when federated only." +
		" Alternatively, this can be set with the following environment variable: " + stakeDurationEnvKey

	defaultDatabaseTimeout = 30 * time.Second
	defaultOracleTimeout   = 5 * time.Second
)

var logger = log.New("prenet/ursula-rest")

var (
	errInvalidDatabaseType = errors.New("database type not set to a valid type." +
		" run start --help to see the available options")
	errMissingDatabaseURL = errors.New("database URL is required for mongodb")
)

type ursulaParameters struct {
	srv             server
	hostURL         string
	externalURL     string
	tlsCertFile     string
	tlsKeyFile      string
	databaseType    string
	databaseURL     string
	databasePrefix  string
	databaseTimeout time.Duration
	logLevel        string
	federatedOnly   bool
	keySeed         string
	oracleTimeout   time.Duration
	stakeDuration   time.Duration
}

type server interface {
	ListenAndServe(host, certFile, keyFile string, router http.Handler) error
}

// HTTPServer represents an actual HTTP server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation. TLS is used when
// both files are given.
func (s *HTTPServer) ListenAndServe(host, certFile, keyFile string, router http.Handler) error {
	if certFile != "" && keyFile != "" {
		return http.ListenAndServeTLS(host, certFile, keyFile, router) //nolint: gosec
	}

	return http.ListenAndServe(host, router) //nolint: gosec
}

// GetStartCmd returns the Cobra start command.
func GetStartCmd(srv server) *cobra.Command {
	startCmd := createStartCmd(srv)

	createFlags(startCmd)

	return startCmd
}

func createStartCmd(srv server) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start Ursula",
		Long:  "Start a re-encryption node serving its REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := getParameters(cmd)
			if err != nil {
				return err
			}

			parameters.srv = srv

			return startUrsula(parameters)
		},
	}
}

func getParameters(cmd *cobra.Command) (*ursulaParameters, error) { //nolint: funlen
	hostURL, err := cmdutils.GetUserSetVarFromString(cmd, hostURLFlagName, hostURLEnvKey, false)
	if err != nil {
		return nil, err
	}

	externalURL, err := cmdutils.GetUserSetVarFromString(cmd, externalURLFlagName, externalURLEnvKey, true)
	if err != nil {
		return nil, err
	}

	tlsCertFile, err := cmdutils.GetUserSetVarFromString(cmd, tlsCertFileFlagName, tlsCertFileEnvKey, true)
	if err != nil {
		return nil, err
	}

	tlsKeyFile, err := cmdutils.GetUserSetVarFromString(cmd, tlsKeyFileFlagName, tlsKeyFileEnvKey, true)
	if err != nil {
		return nil, err
	}

	databaseType, err := cmdutils.GetUserSetVarFromString(cmd, databaseTypeFlagName, databaseTypeEnvKey, false)
	if err != nil {
		return nil, err
	}

	databaseURL, err := cmdutils.GetUserSetVarFromString(cmd, databaseURLFlagName, databaseURLEnvKey, true)
	if err != nil {
		return nil, err
	}

	databasePrefix, err := cmdutils.GetUserSetVarFromString(cmd, databasePrefixFlagName, databasePrefixEnvKey, true)
	if err != nil {
		return nil, err
	}

	databaseTimeout, err := cmdutils.GetDuration(cmd, databaseTimeoutFlagName, databaseTimeoutEnvKey,
		defaultDatabaseTimeout)
	if err != nil {
		return nil, err
	}

	logLevel, err := cmdutils.GetUserSetVarFromString(cmd, logLevelFlagName, logLevelEnvKey, true)
	if err != nil {
		return nil, err
	}

	federatedOnly, err := cmdutils.GetUserSetVarFromBool(cmd, federatedOnlyFlagName, federatedOnlyEnvKey)
	if err != nil {
		return nil, err
	}

	keySeed, err := cmdutils.GetUserSetVarFromString(cmd, keySeedFlagName, keySeedEnvKey, true)
	if err != nil {
		return nil, err
	}

	oracleTimeout, err := cmdutils.GetDuration(cmd, oracleTimeoutFlagName, oracleTimeoutEnvKey, defaultOracleTimeout)
	if err != nil {
		return nil, err
	}

	stakeDuration, err := cmdutils.GetDuration(cmd, stakeDurationFlagName, stakeDurationEnvKey, 0)
	if err != nil {
		return nil, err
	}

	return &ursulaParameters{
		hostURL:         hostURL,
		externalURL:     externalURL,
		tlsCertFile:     tlsCertFile,
		tlsKeyFile:      tlsKeyFile,
		databaseType:    databaseType,
		databaseURL:     databaseURL,
		databasePrefix:  databasePrefix,
		databaseTimeout: databaseTimeout,
		logLevel:        logLevel,
		federatedOnly:   federatedOnly,
		keySeed:         keySeed,
		oracleTimeout:   oracleTimeout,
		stakeDuration:   stakeDuration,
	}, nil
}

func createFlags(startCmd *cobra.Command) {
	startCmd.Flags().StringP(hostURLFlagName, hostURLFlagShorthand, "", hostURLFlagUsage)
	startCmd.Flags().StringP(externalURLFlagName, externalURLFlagShorthand, "", externalURLFlagUsage)
	startCmd.Flags().String(tlsCertFileFlagName, "", tlsCertFileFlagUsage)
	startCmd.Flags().String(tlsKeyFileFlagName, "", tlsKeyFileFlagUsage)
	startCmd.Flags().StringP(databaseTypeFlagName, databaseTypeFlagShorthand, "", databaseTypeFlagUsage)
	startCmd.Flags().StringP(databaseURLFlagName, databaseURLFlagShorthand, "", databaseURLFlagUsage)
	startCmd.Flags().StringP(databasePrefixFlagName, databasePrefixFlagShorthand, "", databasePrefixFlagUsage)
	startCmd.Flags().String(databaseTimeoutFlagName, "", databaseTimeoutFlagUsage)
	startCmd.Flags().StringP(logLevelFlagName, logLevelFlagShorthand, "", logLevelFlagUsage)
	startCmd.Flags().Bool(federatedOnlyFlagName, false, federatedOnlyFlagUsage)
	startCmd.Flags().String(keySeedFlagName, "", keySeedFlagUsage)
	startCmd.Flags().String(oracleTimeoutFlagName, "", oracleTimeoutFlagUsage)
	startCmd.Flags().String(stakeDurationFlagName, "", stakeDurationFlagUsage)
}

func startUrsula(parameters *ursulaParameters) error {
	setLogLevel(parameters.logLevel)

	provider, err := createProvider(parameters)
	if err != nil {
		return err
	}

	ursula, err := createNode(parameters, provider)
	if err != nil {
		return err
	}

	pruned, err := ursula.PruneDatastore(time.Now())
	if err != nil {
		return fmt.Errorf("failed to prune expired arrangements: %w", err)
	}

	logger.Infof("Node %s pruned %d expired arrangements", ursula.ChecksumAddress(), pruned)

	nodeService, err := restapi.New(&operation.Config{Node: ursula})
	if err != nil {
		return err
	}

	router := mux.NewRouter()
	router.UseEncodedPath()

	for _, handler := range nodeService.GetOperations() {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	handler := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "Authorization"},
	}).Handler(router)

	logger.Infof("Starting ursula rest server for node %s on host %s", ursula.ChecksumAddress(),
		parameters.hostURL)

	return parameters.srv.ListenAndServe(parameters.hostURL, parameters.tlsCertFile, parameters.tlsKeyFile, handler)
}

func createNode(parameters *ursulaParameters, provider storage.Provider) (*node.Ursula, error) {
	ds, err := datastore.New(provider, 0)
	if err != nil {
		return nil, err
	}

	signer, decrypter := nodeKeys(parameters.keySeed)

	cfg := &node.Config{
		Signer:        signer,
		Decrypter:     decrypter,
		Datastore:     ds,
		URL:           advertisedURL(parameters),
		FederatedOnly: parameters.federatedOnly,
		OracleTimeout: parameters.oracleTimeout,
	}

	if !parameters.federatedOnly {
		reg, err := registry.New(provider)
		if err != nil {
			return nil, err
		}

		if parameters.stakeDuration > 0 {
			address := crypto.ChecksumAddress(signer.VerifyingKey())
			until := time.Now().Add(parameters.stakeDuration)

			if err := reg.SetStake(context.Background(), address, until); err != nil {
				return nil, fmt.Errorf("failed to record stake: %w", err)
			}

			logger.Infof("Node %s staked until %s", address, until.Format(time.RFC3339))
		}

		cfg.PaymentVerifier = reg
		cfg.ActivityVerifier = reg
		cfg.StakeVerifier = reg
	} else {
		logger.Warnf("Running federated only: payment, activity and stake are not checked")
	}

	return node.New(cfg)
}

func nodeKeys(seed string) (*crypto.Signer, *crypto.Decrypter) {
	if seed == "" {
		logger.Warnf("No key seed given, the node identity won't survive a restart")

		return crypto.NewSigner(crypto.GenerateSecretKey()), crypto.NewDecrypter(crypto.GenerateSecretKey())
	}

	root := crypto.Keccak256([]byte(seed))

	return crypto.NewSigner(crypto.SecretKeyFromSeed(crypto.Keccak256([]byte("signing"), root))),
		crypto.NewDecrypter(crypto.SecretKeyFromSeed(crypto.Keccak256([]byte("decrypting"), root)))
}

func advertisedURL(parameters *ursulaParameters) string {
	if parameters.externalURL != "" {
		return parameters.externalURL
	}

	if parameters.tlsCertFile != "" && parameters.tlsKeyFile != "" {
		return "https://" + parameters.hostURL
	}

	return "http://" + parameters.hostURL
}

func setLogLevel(logLevel string) {
	if logLevel == "" {
		logLevel = logLevelInfo
	}

	level, err := log.ParseLevel(logLevel)
	if err != nil {
		logger.Warnf("%s is not a valid logging level. It must be one of the following: "+
			"critical, error, warning, info, debug. Defaulting to info.", logLevel)

		level = log.INFO
	}

	log.SetLevel("", level)
}

func createProvider(parameters *ursulaParameters) (storage.Provider, error) {
	switch {
	case strings.EqualFold(parameters.databaseType, databaseTypeMemOption):
		return mem.NewProvider(), nil
	case strings.EqualFold(parameters.databaseType, databaseTypeMongoDBOption):
		if parameters.databaseURL == "" {
			return nil, errMissingDatabaseURL
		}

		provider, err := mongodb.NewProvider(parameters.databaseURL, mongodb.WithDBPrefix(parameters.databasePrefix),
			mongodb.WithTimeout(parameters.databaseTimeout))
		if err != nil {
			return nil, fmt.Errorf("failed to create mongodb provider: %w", err)
		}

		return provider, nil
	default:
		return nil, errInvalidDatabaseType
	}
}
