// Package devices turns device identifiers and free text into short labels.
//
// ClassifyInstanceID recognises PnP instance-id prefixes and PCI vendor and
// device tokens. ClassifyBDF guesses a slot role from a PCI bus/device/function
// triple; BDFOverrides lets an operator pin exact triples to labels.
// SmartHint reads SMART wording. Friendly names come from a Resolver that the
// caller injects.
package devices
