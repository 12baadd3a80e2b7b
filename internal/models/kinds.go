package models

import "strings"

// Kind describes one inventory resource kind: where it lives, which fields
// it carries and how the admin pages search and de-duplicate it.
type Kind struct {
	Slug         string
	Label        string
	Prefix       string
	Fields       []string
	NameField    string
	SearchFields []string
	Required     []string

	// Aliases maps field names seen from older backends to the canonical
	// field name. Keys are matched exactly.
	Aliases map[string]string
}

// HasField reports whether name is one of the kind's canonical fields.
func (k Kind) HasField(name string) bool {
	for _, f := range k.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// Kinds lists every supported resource kind in sidebar order.
var Kinds = []Kind{
	{
		Slug: "brands", Label: "Brand", Prefix: "BRD",
		Fields:       []string{"name", "description"},
		NameField:    "name",
		SearchFields: []string{"name", "description"},
		Required:     []string{"name"},
		Aliases: map[string]string{
			"brandName": "name", "brand_name": "name", "brand": "name",
		},
	},
	{
		Slug: "models", Label: "Model", Prefix: "MDL",
		Fields:       []string{"name", "brand"},
		NameField:    "name",
		SearchFields: []string{"name", "brand"},
		Required:     []string{"name"},
		Aliases: map[string]string{
			"modelName": "name", "model_name": "name",
			"brandName": "brand", "brand_name": "brand",
		},
	},
	{
		Slug: "motherboards", Label: "Motherboard", Prefix: "MBD",
		Fields:       []string{"name", "brand", "chipset", "socket"},
		NameField:    "name",
		SearchFields: []string{"name", "brand", "chipset", "socket"},
		Required:     []string{"name"},
		Aliases: map[string]string{
			"motherboardName": "name", "motherboard_name": "name", "motherboard": "name",
		},
	},
	{
		Slug: "processors", Label: "Processor", Prefix: "CPU",
		Fields:       []string{"name", "brand", "cores", "speed"},
		NameField:    "name",
		SearchFields: []string{"name", "brand"},
		Required:     []string{"name"},
		Aliases: map[string]string{
			"processorName": "name", "processor_name": "name", "processor": "name",
			"coreCount": "cores", "core_count": "cores",
			"clockSpeed": "speed", "clock_speed": "speed",
		},
	},
	{
		Slug: "ram-models", Label: "RamModel", Prefix: "RMM",
		Fields:       []string{"name", "type"},
		NameField:    "name",
		SearchFields: []string{"name", "type"},
		Required:     []string{"name"},
		Aliases: map[string]string{
			"ramModel": "name", "ram_model": "name", "modelName": "name",
			"ramType": "type", "ram_type": "type",
		},
	},
	{
		Slug: "ram-sizes", Label: "RamSize", Prefix: "RMS",
		Fields:       []string{"size"},
		NameField:    "size",
		SearchFields: []string{"size"},
		Required:     []string{"size"},
		Aliases: map[string]string{
			"ramSize": "size", "ram_size": "size", "capacity": "size",
		},
	},
	{
		Slug: "storage-models", Label: "StorageModel", Prefix: "STM",
		Fields:       []string{"name", "type"},
		NameField:    "name",
		SearchFields: []string{"name", "type"},
		Required:     []string{"name"},
		Aliases: map[string]string{
			"storageModel": "name", "storage_model": "name",
			"storageType": "type", "storage_type": "type",
		},
	},
	{
		Slug: "storage-sizes", Label: "StorageSize", Prefix: "STS",
		Fields:       []string{"size"},
		NameField:    "size",
		SearchFields: []string{"size"},
		Required:     []string{"size"},
		Aliases: map[string]string{
			"storageSize": "size", "storage_size": "size", "capacity": "size",
		},
	},
	{
		Slug: "video-card-memories", Label: "VideoCardMemory", Prefix: "VCM",
		Fields:       []string{"size"},
		NameField:    "size",
		SearchFields: []string{"size"},
		Required:     []string{"size"},
		Aliases: map[string]string{
			"videoCardMemory": "size", "video_card_memory": "size", "memory": "size",
		},
	},
	{
		Slug: "video-card-models", Label: "VideoCardModel", Prefix: "VCD",
		Fields:       []string{"name", "brand"},
		NameField:    "name",
		SearchFields: []string{"name", "brand"},
		Required:     []string{"name"},
		Aliases: map[string]string{
			"videoCardModel": "name", "video_card_model": "name", "videoCard": "name",
		},
	},
	{
		Slug: "office-installed", Label: "OfficeInstalled", Prefix: "OFC",
		Fields:       []string{"name", "version"},
		NameField:    "name",
		SearchFields: []string{"name", "version"},
		Required:     []string{"name"},
		Aliases: map[string]string{
			"officeName": "name", "office_name": "name", "officeInstalled": "name",
			"office_installed": "name",
		},
	},
	{
		Slug: "os-installed", Label: "OsInstalled", Prefix: "OSI",
		Fields:       []string{"name", "version"},
		NameField:    "name",
		SearchFields: []string{"name", "version"},
		Required:     []string{"name"},
		Aliases: map[string]string{
			"osName": "name", "os_name": "name", "osInstalled": "name",
			"os_installed": "name",
		},
	},
	{
		Slug: "inventory", Label: "InventoryRecord", Prefix: "INV",
		Fields: []string{
			"asset_tag", "serial", "brand", "model", "motherboard", "processor",
			"ram_size", "storage_size", "video_card_model", "os_installed",
			"office_installed", "location", "assigned_to", "notes",
		},
		NameField:    "asset_tag",
		SearchFields: []string{"asset_tag", "serial", "brand", "model", "location", "assigned_to"},
		Required:     []string{"asset_tag"},
		Aliases: map[string]string{
			"assetTag": "asset_tag", "tag": "asset_tag",
			"serialNumber": "serial", "serial_number": "serial",
			"brandName": "brand", "modelName": "model",
			"ramSize": "ram_size", "storageSize": "storage_size",
			"videoCardModel": "video_card_model",
			"osInstalled": "os_installed", "officeInstalled": "office_installed",
			"assignedTo": "assigned_to",
		},
	},
}

// LookupKind returns the kind registered under slug. The match is
// case-insensitive so CLI input like "Brands" resolves.
func LookupKind(slug string) (Kind, bool) {
	for _, k := range Kinds {
		if strings.EqualFold(k.Slug, slug) || strings.EqualFold(k.Label, slug) {
			return k, true
		}
	}
	return Kind{}, false
}
