package mcan

import "fmt"

// Base addresses of the TC37x MCAN modules. The message RAM starts at the
// module base address.
const (
	TC37xCAN0 = 0xF0200000
	TC37xCAN1 = 0xF0210000
)

// DefaultRAMSize is the size of the message RAM window of one module.
const DefaultRAMSize = 0x8000

// MaxRAMSize is the largest window addressable by the 14-bit word
// address fields of the start address registers.
const MaxRAMSize = 0x10000

// Module registers, offsets from the module base.
const (
	clcOffset    = 0x8000
	mcrOffset    = 0x80C8
	accen0Offset = 0x80FC
	nodeOffset   = 0x8100
	nodeStride   = 0x400
)

// CLC
const (
	clcDISR = 1 << 0
	clcDISS = 1 << 1
)

// MCR
const (
	mcrCLKSELMsk = 0x3
	mcrCI        = 1 << 30
	mcrCCCE      = 1 << 31
)

// Node registers, offsets from the node base.
const (
	regDBTP   = 0x0C
	regCCCR   = 0x18
	regNBTP   = 0x1C
	regECR    = 0x40
	regPSR    = 0x44
	regTDCR   = 0x48
	regIR     = 0x50
	regIE     = 0x54
	regILE    = 0x5C
	regGFC    = 0x80
	regSIDFC  = 0x84
	regXIDFC  = 0x88
	regXIDAM  = 0x90
	regNDAT1  = 0x98
	regNDAT2  = 0x9C
	regRXF0C  = 0xA0
	regRXF0S  = 0xA4
	regRXF0A  = 0xA8
	regRXBC   = 0xAC
	regRXF1C  = 0xB0
	regRXF1S  = 0xB4
	regRXF1A  = 0xB8
	regRXESC  = 0xBC
	regTXBC   = 0xC0
	regTXFQS  = 0xC4
	regTXESC  = 0xC8
	regTXBRP  = 0xCC
	regTXBAR  = 0xD0
	regTXBCR  = 0xD4
	regTXBTO  = 0xD8
	regTXBCF  = 0xDC
	regTXBTIE = 0xE0
	regTXEFC  = 0xF0
	regTXEFS  = 0xF4
	regTXEFA  = 0xF8
	regGRINT1 = 0x208
	regGRINT2 = 0x20C
	regNPCR   = 0x300
)

var nodeRegNames = map[uint32]string{
	regDBTP: "DBTP", regCCCR: "CCCR", regNBTP: "NBTP", regECR: "ECR",
	regPSR: "PSR", regTDCR: "TDCR", regIR: "IR", regIE: "IE",
	regILE: "ILE", regGFC: "GFC", regSIDFC: "SIDFC", regXIDFC: "XIDFC",
	regXIDAM: "XIDAM", regNDAT1: "NDAT1", regNDAT2: "NDAT2", regRXF0C: "RXF0C",
	regRXF0S: "RXF0S", regRXF0A: "RXF0A", regRXBC: "RXBC", regRXF1C: "RXF1C",
	regRXF1S: "RXF1S", regRXF1A: "RXF1A", regRXESC: "RXESC", regTXBC: "TXBC",
	regTXFQS: "TXFQS", regTXESC: "TXESC", regTXBRP: "TXBRP", regTXBAR: "TXBAR",
	regTXBCR: "TXBCR", regTXBTO: "TXBTO", regTXBCF: "TXBCF", regTXBTIE: "TXBTIE",
	regTXEFC: "TXEFC", regTXEFS: "TXEFS", regTXEFA: "TXEFA", regGRINT1: "GRINT1",
	regGRINT2: "GRINT2", regNPCR: "NPCR",
}

// RegisterName names the register at offset from a module base, such as
// "MCR" or "N1.CCCR". Offsets inside the message RAM yield "RAM+0x120".
func RegisterName(offset uint32) string {
	switch {
	case offset < clcOffset:
		return fmt.Sprintf("RAM+%#x", offset)
	case offset == clcOffset:
		return "CLC"
	case offset == mcrOffset:
		return "MCR"
	case offset == accen0Offset:
		return "ACCEN0"
	case offset >= nodeOffset && offset < nodeOffset+NumNodes*nodeStride:
		n := (offset - nodeOffset) / nodeStride
		if name, ok := nodeRegNames[(offset-nodeOffset)%nodeStride]; ok {
			return fmt.Sprintf("N%d.%s", n, name)
		}
	}
	return fmt.Sprintf("%#x", offset)
}

// CCCR
const (
	cccrINIT = 1 << 0
	cccrCCE  = 1 << 1
	cccrFDOE = 1 << 8
	cccrBRSE = 1 << 9
	cccrTXP  = 1 << 14
)

// NBTP
const (
	nbtpNTSEG2Pos = 0
	nbtpNTSEG2Msk = 0x7f
	nbtpNTSEG1Pos = 8
	nbtpNTSEG1Msk = 0xff
	nbtpNBRPPos   = 16
	nbtpNBRPMsk   = 0x1ff
	nbtpNSJWPos   = 25
	nbtpNSJWMsk   = 0x7f
)

// DBTP
const (
	dbtpDSJWPos   = 0
	dbtpDSJWMsk   = 0xf
	dbtpDTSEG2Pos = 4
	dbtpDTSEG2Msk = 0xf
	dbtpDTSEG1Pos = 8
	dbtpDTSEG1Msk = 0x1f
	dbtpDBRPPos   = 16
	dbtpDBRPMsk   = 0x1f
	dbtpTDC       = 1 << 23
)

// TDCR
const (
	tdcrTDCOPos = 8
	tdcrTDCOMsk = 0x7f
)

// ECR
const (
	ecrTECPos = 0
	ecrTECMsk = 0xff
	ecrRECPos = 8
	ecrRECMsk = 0x7f
	ecrRP     = 1 << 15
)

// PSR
const (
	psrLECMsk = 0x7
	psrEP     = 1 << 5
	psrEW     = 1 << 6
	psrBO     = 1 << 7
)

// GFC
const (
	gfcRRFE    = 1 << 0
	gfcRRFS    = 1 << 1
	gfcANFEPos = 2
	gfcANFSPos = 4
	gfcANFMsk  = 0x3
)

// SIDFC, XIDFC
const (
	sidfcLSSPos = 16
	sidfcLSSMsk = 0xff
	xidfcLSEPos = 16
	xidfcLSEMsk = 0x7f
	xidamMsk    = 0x1fffffff
)

// Start address fields share one layout in every RAM configuration
// register: a word address in bits 15:2.
const startAddrMsk = 0xfffc

// RXF0C, RXF1C
const (
	rxfcSPos  = 16
	rxfcSMsk  = 0x7f
	rxfcWMPos = 24
	rxfcWMMsk = 0x7f
	rxfcOM    = 1 << 31
)

// RXF0S, RXF1S
const (
	rxfsFLMsk = 0x7f
	rxfsGIPos = 8
	rxfsGIMsk = 0x3f
	rxfsPIPos = 16
	rxfsPIMsk = 0x3f
	rxfsF     = 1 << 24
	rxfsRFL   = 1 << 25
)

// RXF0A, RXF1A
const rxfaAIMsk = 0x3f

// RXESC
const (
	rxescF0DSPos = 0
	rxescF1DSPos = 4
	rxescRBDSPos = 8
	dsMsk        = 0x7
)

// TXBC
const (
	txbcNDTBPos = 16
	txbcNDTBMsk = 0x3f
	txbcTFQSPos = 24
	txbcTFQSMsk = 0x3f
	txbcTFQM    = 1 << 30
)

// TXFQS
const (
	txfqsTFFLMsk  = 0x3f
	txfqsTFGIPos  = 8
	txfqsTFGIMsk  = 0x1f
	txfqsTFQPIPos = 16
	txfqsTFQPIMsk = 0x1f
	txfqsTFQF     = 1 << 21
)

// TXESC
const txescTBDSPos = 0

// TXEFC
const (
	txefcEFSPos  = 16
	txefcEFSMsk  = 0x3f
	txefcEFWMPos = 24
	txefcEFWMMsk = 0x3f
)

// TXEFS
const (
	txefsEFFLMsk = 0x3f
	txefsEFGIPos = 8
	txefsEFGIMsk = 0x1f
	txefsEFPIPos = 16
	txefsEFPIMsk = 0x1f
	txefsEFF     = 1 << 24
	txefsTEFL    = 1 << 25
)

// TXEFA
const txefaEFAIMsk = 0x1f

// ILE
const (
	ileEINT0 = 1 << 0
	ileEINT1 = 1 << 1
)

// NPCR
const (
	npcrRXSELMsk = 0x7
	npcrLBMPos   = 8
)

// Element limits of the configuration registers.
const (
	maxRxFIFOElements  = 64
	maxRxBuffers       = 64
	maxTxBuffers       = 32
	maxTxEventElements = 32
	maxStdFilters      = 128
	maxExtFilters      = 64
	maxWatermark       = 64
	maxTxEventMark     = 32
)
