package helius

// TransactionType is the category tag Helius assigns to an enriched transaction.
// The set below is what we classify; any other value is carried through as-is.
type TransactionType string

const (
	TypeUnknown               TransactionType = "UNKNOWN"
	TypeNFTSale               TransactionType = "NFT_SALE"
	TypeNFTListing            TransactionType = "NFT_LISTING"
	TypeNFTCancelListing      TransactionType = "NFT_CANCEL_LISTING"
	TypeNFTBid                TransactionType = "NFT_BID"
	TypeNFTBidCancelled       TransactionType = "NFT_BID_CANCELLED"
	TypeNFTGlobalBid          TransactionType = "NFT_GLOBAL_BID"
	TypeNFTMint               TransactionType = "NFT_MINT"
	TypeCompressedNFTMint     TransactionType = "COMPRESSED_NFT_MINT"
	TypeCompressedNFTTransfer TransactionType = "COMPRESSED_NFT_TRANSFER"
	TypeSwap                  TransactionType = "SWAP"
	TypeTransfer              TransactionType = "TRANSFER"
	TypeBurn                  TransactionType = "BURN"
	TypeBurnNFT               TransactionType = "BURN_NFT"
)

// Source identifies the program or marketplace that produced the transaction.
type Source string

const (
	SourceSolanaProgramLibrary Source = "SOLANA_PROGRAM_LIBRARY"
	SourceSystemProgram        Source = "SYSTEM_PROGRAM"
	SourceMagicEden            Source = "MAGIC_EDEN"
	SourceTensor               Source = "TENSOR"
	SourceJupiter              Source = "JUPITER"
	SourceBubblegum            Source = "BUBBLEGUM"
)

// EnrichedTransaction is the parsed transaction shape returned by the Helius
// enhanced transactions API.
type EnrichedTransaction struct {
	Description      string            `json:"description"`
	Type             TransactionType   `json:"type"`
	Source           Source            `json:"source"`
	Fee              Int               `json:"fee"`
	FeePayer         string            `json:"feePayer"`
	Signature        string            `json:"signature"`
	Slot             Int               `json:"slot"`
	Timestamp        Int               `json:"timestamp"` // unix seconds
	NativeTransfers  []NativeTransfer  `json:"nativeTransfers"`
	TokenTransfers   []TokenTransfer   `json:"tokenTransfers"`
	AccountData      []AccountData     `json:"accountData"`
	TransactionError *TransactionError `json:"transactionError,omitempty"`
	Events           Events            `json:"events"`
}

type TransactionError struct {
	Error string `json:"error"`
}

type NativeTransfer struct {
	FromUserAccount string `json:"fromUserAccount"`
	ToUserAccount   string `json:"toUserAccount"`
	Amount          Int    `json:"amount"`
}

// TokenTransfer amounts are already in display units.
type TokenTransfer struct {
	FromUserAccount  string `json:"fromUserAccount"`
	ToUserAccount    string `json:"toUserAccount"`
	FromTokenAccount string `json:"fromTokenAccount"`
	ToTokenAccount   string `json:"toTokenAccount"`
	TokenAmount      Number `json:"tokenAmount"`
	Mint             string `json:"mint"`
}

type AccountData struct {
	Account             string               `json:"account"`
	NativeBalanceChange Int                  `json:"nativeBalanceChange"`
	TokenBalanceChanges []TokenBalanceChange `json:"tokenBalanceChanges"`
}

type TokenBalanceChange struct {
	UserAccount    string         `json:"userAccount"`
	TokenAccount   string         `json:"tokenAccount"`
	Mint           string         `json:"mint"`
	RawTokenAmount RawTokenAmount `json:"rawTokenAmount"`
}

// RawTokenAmount is an integer amount in the mint's base units, encoded as a string.
type RawTokenAmount struct {
	TokenAmount string `json:"tokenAmount"`
	Decimals    Int    `json:"decimals"`
}

// Events holds the category-specific payloads. A nil field means Helius did not
// attach that category to the transaction.
type Events struct {
	NFT        *NFTEvent         `json:"nft,omitempty"`
	Swap       *SwapEvent        `json:"swap,omitempty"`
	Compressed []CompressedEvent `json:"compressed,omitempty"`
}

type NFTEvent struct {
	Description string          `json:"description"`
	Type        TransactionType `json:"type"`
	Source      Source          `json:"source"`
	Amount      Int             `json:"amount"`
	Fee         Int             `json:"fee"`
	FeePayer    string          `json:"feePayer"`
	Signature   string          `json:"signature"`
	Slot        Int             `json:"slot"`
	Timestamp   Int             `json:"timestamp"`
	SaleType    string          `json:"saleType"`
	Buyer       string          `json:"buyer"`
	Seller      string          `json:"seller"`
	Staker      string          `json:"staker"`
	NFTs        []NFT           `json:"nfts"`
}

type NFT struct {
	Mint          string `json:"mint"`
	TokenStandard string `json:"tokenStandard"`
}

type CompressedEvent struct {
	Type                  TransactionType `json:"type"`
	TreeID                string          `json:"treeId"`
	AssetID               string          `json:"assetId"`
	LeafIndex             Int             `json:"leafIndex"`
	InstructionIndex      Int             `json:"instructionIndex"`
	InnerInstructionIndex Int             `json:"innerInstructionIndex"`
	NewLeafOwner          string          `json:"newLeafOwner"`
	OldLeafOwner          string          `json:"oldLeafOwner"`
}

type SwapEvent struct {
	NativeInput  *NativeSwapAmount `json:"nativeInput"`
	NativeOutput *NativeSwapAmount `json:"nativeOutput"`
	TokenInputs  []TokenSwapAmount `json:"tokenInputs"`
	TokenOutputs []TokenSwapAmount `json:"tokenOutputs"`
}

// NativeSwapAmount carries lamports as a decimal string on the wire.
type NativeSwapAmount struct {
	Account string `json:"account"`
	Amount  Int    `json:"amount"`
}

type TokenSwapAmount struct {
	UserAccount    string         `json:"userAccount"`
	TokenAccount   string         `json:"tokenAccount"`
	Mint           string         `json:"mint"`
	RawTokenAmount RawTokenAmount `json:"rawTokenAmount"`
}
