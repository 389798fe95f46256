package decision

// Param describes one tool argument.
type Param struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Tool is a capability the decision service may invoke through the
// gateway.
type Tool struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Parameters  map[string]Param `json:"parameters"`
}

func tenantParam() Param {
	return Param{Type: "string", Description: "CNPJ da clínica", Required: true}
}

func optional(typ, desc string) Param { return Param{Type: typ, Description: desc} }

func required(typ, desc string) Param { return Param{Type: typ, Description: desc, Required: true} }

var catalog = []Tool{
	{
		Name:        "listar_pacientes",
		Description: "Lista todos os pacientes da clínica",
		Parameters: map[string]Param{
			"cnpj": tenantParam(),
			"nome": optional("string", "filtro por nome"),
			"cpf":  optional("string", "filtro por CPF"),
		},
	},
	{
		Name:        "criar_paciente",
		Description: "Cria um novo paciente na clínica",
		Parameters: map[string]Param{
			"cnpj":            tenantParam(),
			"nome":            required("string", "nome completo"),
			"cpf":             required("string", "CPF do paciente"),
			"data_nascimento": required("string", "YYYY-MM-DD"),
			"telefone":        required("string", "telefone celular"),
			"email":           optional("string", "e-mail"),
		},
	},
	{
		Name:        "obter_paciente",
		Description: "Obtém os dados de um paciente específico",
		Parameters: map[string]Param{
			"cnpj": tenantParam(),
			"cpf":  required("string", "CPF do paciente"),
		},
	},
	{
		Name:        "listar_convenios_paciente",
		Description: "Lista os convênios de um paciente específico",
		Parameters: map[string]Param{
			"cnpj":        tenantParam(),
			"id_paciente": required("integer", "ID do paciente"),
		},
	},
	{
		Name:        "associar_convenio_paciente",
		Description: "Associa um convênio a um paciente",
		Parameters: map[string]Param{
			"cnpj":            tenantParam(),
			"paciente_id":     required("string", "ID do paciente"),
			"convenio_id":     required("string", "ID do tipo de convênio"),
			"numero_carteira": optional("string", "número da carteirinha"),
		},
	},
	{
		Name:        "listar_tipos_convenios",
		Description: "Lista todos os tipos de convênios disponíveis",
		Parameters:  map[string]Param{"cnpj": tenantParam()},
	},
	{
		Name:        "listar_executores",
		Description: "Lista todos os médicos/executores disponíveis",
		Parameters: map[string]Param{
			"cnpj":             tenantParam(),
			"id_especialidade": optional("integer", "filtro por especialidade"),
			"id_tipo_convenio": optional("integer", "filtro por convênio"),
			"nome":             optional("string", "filtro por nome"),
		},
	},
	{
		Name:        "listar_especialidades",
		Description: "Lista todas as especialidades disponíveis",
		Parameters: map[string]Param{
			"cnpj": tenantParam(),
			"nome": optional("string", "filtro por nome"),
		},
	},
	{
		Name:        "verificar_disponibilidade",
		Description: "Verifica a disponibilidade de horários",
		Parameters: map[string]Param{
			"cnpj":        tenantParam(),
			"executor_id": required("string", "ID do executor"),
			"data_inicio": required("string", "YYYY-MM-DD"),
			"data_fim":    required("string", "YYYY-MM-DD"),
		},
	},
	{
		Name:        "criar_agendamento",
		Description: "Cria um novo agendamento",
		Parameters: map[string]Param{
			"cnpj":        tenantParam(),
			"paciente_id": required("string", "ID do paciente"),
			"executor_id": required("string", "ID do executor"),
			"data":        required("string", "YYYY-MM-DD"),
			"hora":        required("string", "HH:MM"),
			"convenio_id": optional("string", "ID do convênio"),
			"observacoes": optional("string", "observações"),
		},
	},
	{
		Name:        "listar_agendamentos",
		Description: "Lista os agendamentos",
		Parameters: map[string]Param{
			"cnpj":        tenantParam(),
			"paciente_id": optional("string", "filtro por paciente"),
			"executor_id": optional("string", "filtro por executor"),
			"data_inicio": optional("string", "YYYY-MM-DD"),
			"data_fim":    optional("string", "YYYY-MM-DD"),
		},
	},
	{
		Name:        "obter_clinica",
		Description: "Obtém os dados de uma clínica pelo CNPJ",
		Parameters:  map[string]Param{"cnpj": required("string", "CNPJ da clínica")},
	},
}

// Catalog returns the static tool descriptions advertised by the gateway.
func Catalog() []Tool {
	out := make([]Tool, len(catalog))
	copy(out, catalog)
	return out
}

// ToolNames lists the catalogue names in order.
func ToolNames() []string {
	names := make([]string, 0, len(catalog))
	for _, t := range catalog {
		names = append(names, t.Name)
	}
	return names
}
